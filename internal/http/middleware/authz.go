package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/camrec/internal/domain/principal"
	"github.com/edirooss/camrec/internal/service"
)

// Authorization permits the request only if the authenticated principal's
// kind is one of allowed. It must run after Authentication.
func Authorization(authsvc *service.AuthService, allowed ...principal.Kind) gin.HandlerFunc {
	allowedSet := make(map[principal.Kind]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	return func(c *gin.Context) {
		p := authsvc.WhoAmI(c)
		if p == nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if _, ok := allowedSet[p.Kind]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "insufficient role"})
			return
		}
		c.Next()
	}
}
