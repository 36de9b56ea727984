package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/domain/principal"
	"github.com/edirooss/camrec/internal/repo"
)

type contextKey string

const principalKey contextKey = "auth.principal"

var (
	// ErrUnauthenticated means the bearer token did not resolve to anyone.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotAllowed means the principal is known but not on the allow-list.
	ErrNotAllowed = errors.New("principal not allowed")
)

// IdentityProvider resolves bearer tokens to principals.
// *repo.PrincipalRepository implements it.
type IdentityProvider interface {
	GetByToken(ctx context.Context, token string) (*principal.Principal, error)
}

// AllowList yields the IDs permitted to use the API. *ConfigStore
// implements it from the camera document.
type AllowList interface {
	AllowedUsers() ([]string, error)
}

// AuthService handles bearer authentication against the identity provider
// and the document's allow-list.
type AuthService struct {
	log   *zap.Logger
	idp   IdentityProvider
	allow AllowList
}

func NewAuthService(log *zap.Logger, idp IdentityProvider, allow AllowList) *AuthService {
	return &AuthService{log: log.Named("auth"), idp: idp, allow: allow}
}

// AuthenticateWithBearerToken resolves token and checks the allow-list. On
// success the principal is attached to the request context.
func (s *AuthService) AuthenticateWithBearerToken(c *gin.Context, token string) (*principal.Principal, error) {
	p, err := s.idp.GetByToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, repo.ErrPrincipalNotFound) {
			s.log.Warn("bearer lookup failed", zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	users, err := s.allow.AllowedUsers()
	if err != nil {
		s.log.Warn("allow-list unavailable", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrNotAllowed, err)
	}
	if p.ID == "" || !slices.Contains(users, p.ID) {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, p.ID)
	}

	s.setPrincipal(c, p)
	return p, nil
}

// WhoAmI returns the authenticated Principal from the Gin context.
// Returns nil if no principal is set.
func (s *AuthService) WhoAmI(c *gin.Context) *principal.Principal {
	if v, ok := c.Get(string(principalKey)); ok {
		if p, ok := v.(*principal.Principal); ok {
			return p
		}
	}
	return nil
}

func (s *AuthService) setPrincipal(c *gin.Context, p *principal.Principal) {
	c.Set(string(principalKey), p)
}
