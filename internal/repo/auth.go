package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edirooss/camrec/internal/domain/principal"
)

var (
	// ErrPrincipalNotFound indicates no principal is mapped to the token.
	ErrPrincipalNotFound = errors.New("principal not found")

	authBearerKeyPrefix = "camrec:auth:bearer:" // JSON value per token
)

func bearerKey(token string) string { return authBearerKeyPrefix + token }
func bearerScanPattern() string     { return authBearerKeyPrefix + "*" }

// PrincipalRepository maps bearer tokens to principals in Redis. It is the
// identity provider of the control API.
type PrincipalRepository struct {
	log    *zap.Logger
	client *RedisClient
}

func NewPrincipalRepository(log *zap.Logger, client *RedisClient) *PrincipalRepository {
	return &PrincipalRepository{
		log:    log.Named("principals"),
		client: client,
	}
}

// Upsert stores p at camrec:auth:bearer:<token>.
func (r *PrincipalRepository) Upsert(ctx context.Context, token string, p *principal.Principal) error {
	if token == "" {
		return errors.New("empty token")
	}
	if p == nil || p.ID == "" {
		return errors.New("invalid principal")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := r.client.Set(ctx, bearerKey(token), payload, 0).Err(); err != nil {
		return fmt.Errorf("set principal: %w", err)
	}
	return nil
}

// GetByToken resolves a bearer token. Unknown tokens yield
// ErrPrincipalNotFound.
func (r *PrincipalRepository) GetByToken(ctx context.Context, token string) (*principal.Principal, error) {
	if token == "" {
		return nil, ErrPrincipalNotFound
	}
	raw, err := r.client.Get(ctx, bearerKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	var p principal.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode principal: %w", err)
	}
	return &p, nil
}

// Revoke removes a single token (idempotent).
func (r *PrincipalRepository) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, bearerKey(token)).Err(); err != nil {
		return fmt.Errorf("del principal: %w", err)
	}
	return nil
}

// RevokeAll removes every token under camrec:auth:bearer:* (idempotent).
func (r *PrincipalRepository) RevokeAll(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, bearerScanPattern(), 1024).Result()
		if err != nil {
			return removed, fmt.Errorf("scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	r.log.Info("revoked bearer tokens", zap.Int("count", removed))
	return removed, nil
}
