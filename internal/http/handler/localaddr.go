package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/camrec/internal/service"
)

// LocalAddrs handles GET /api/system/net/localaddrs: the host's IPv4
// addresses with their subnets.
func LocalAddrs(hostnet *service.HostNetwork) gin.HandlerFunc {
	return func(c *gin.Context) {
		addrs, err := hostnet.Addrs(c.Request.Context())
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(len(addrs)))
		c.JSON(http.StatusOK, addrs)
	}
}
