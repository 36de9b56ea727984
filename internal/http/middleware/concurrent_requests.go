package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ExclusiveOperation lets one request through at a time; a request arriving
// while another is in flight gets 409. Used for service restarts, where a
// second caller should not queue behind the first.
func ExclusiveOperation() gin.HandlerFunc {
	busy := make(chan struct{}, 1)

	return func(c *gin.Context) {
		select {
		case busy <- struct{}{}:
			defer func() { <-busy }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "operation already in progress"})
		}
	}
}
