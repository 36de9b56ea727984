package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/camrec/internal/repo"
	"github.com/edirooss/camrec/internal/service"
)

// Authentication resolves the request's bearer token and checks the caller
// against the camera document's allow-list.
//
//   - 401 when the header is missing, malformed or the token is unknown
//   - 403 when the principal is known but not allow-listed
//   - 503 when the identity provider cannot be reached
func Authentication(authsvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}

		if _, err := authsvc.AuthenticateWithBearerToken(c, token); err != nil {
			c.Error(err)
			switch {
			case errors.Is(err, service.ErrNotAllowed):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			case errors.Is(err, repo.ErrPrincipalNotFound):
				unauthorized(c, "invalid token")
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "identity provider unavailable"})
			}
			return
		}

		c.Next()
	}
}

// bearerToken extracts the credentials of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="camrec"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msg})
}
