package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/edirooss/camrec/internal/metrics"
)

// RateLimitConfig bounds how often a route may be hit, both overall and per
// client IP.
type RateLimitConfig struct {
	GlobalRate  rate.Limit
	GlobalBurst int
	PerIPRate   rate.Limit
	PerIPBurst  int

	// Per-IP limiters are dropped after this long so the map stays small.
	CleanupInterval time.Duration
}

type limiter struct {
	cfg    RateLimitConfig
	global *rate.Limiter

	mu          sync.Mutex
	perIP       map[string]*rate.Limiter
	lastCleanup time.Time
}

// RateLimit rejects requests over the configured rates with 429 and a
// Retry-After header.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	l := &limiter{
		cfg:         cfg,
		global:      rate.NewLimiter(cfg.GlobalRate, cfg.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}

	return func(c *gin.Context) {
		if kind, ok := l.allow(c.ClientIP()); !ok {
			metrics.RateLimited.WithLabelValues(kind).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter(cfg.PerIPRate)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *limiter) allow(ip string) (string, bool) {
	if !l.global.Allow() {
		return "global", false
	}

	l.mu.Lock()
	if time.Since(l.lastCleanup) >= l.cfg.CleanupInterval {
		l.perIP = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}
	lim, ok := l.perIP[ip]
	if !ok {
		lim = rate.NewLimiter(l.cfg.PerIPRate, l.cfg.PerIPBurst)
		l.perIP[ip] = lim
	}
	l.mu.Unlock()

	if !lim.Allow() {
		return "per_ip", false
	}
	return "", true
}

// retryAfter is the whole-second wait for one token at r.
func retryAfter(r rate.Limit) int {
	if r <= 0 || r == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(r))))
}
