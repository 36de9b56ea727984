package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health handles GET /api/health. It is public and never touches the
// recorder, the document or Redis.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
