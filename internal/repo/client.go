package repo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient wraps the Redis client with connection diagnostics.
type RedisClient struct {
	*redis.Client
	log *zap.Logger
}

// NewRedisClient connects to addr and logs whether the first ping succeeded.
// A failed ping is not fatal; lookups fail until Redis is reachable.
func NewRedisClient(ctx context.Context, log *zap.Logger, addr string, db int) *RedisClient {
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}

	client := &RedisClient{
		Client: redis.NewClient(opts),
		log:    log.Named("redis"),
	}
	client.Ping(ctx)
	return client
}

// Ping bounds the check to 500ms and logs the outcome.
func (c *RedisClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	opts := c.Options()
	log := c.log.With(zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	if err != nil {
		log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", time.Since(start)))
		return err
	}
	log.Info("connection established", zap.Duration("ping_rtt", time.Since(start)))
	return nil
}
