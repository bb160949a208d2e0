package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ActionLimiter is a shared limiter such as the Redis token bucket.
type ActionLimiter interface {
	AllowAction(ctx context.Context, uid, action string, rate, burst int) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits per uid. It asks the shared limiter first and falls back
// to an in-process bucket when none is configured or it errors.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rps      int
	burst    int
	shared   ActionLimiter
}

func NewRateLimiter(rps int, shared ActionLimiter) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rps,
		burst:    rps * 2,
		shared:   shared,
	}
}

func (rl *RateLimiter) getLimiter(uid string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[uid]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.limiters[uid] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// Allow reports whether uid may perform action now.
func (rl *RateLimiter) Allow(ctx context.Context, uid, action string) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowAction(ctx, uid, action, rl.rps, rl.burst)
		if err == nil {
			return ok
		}
		slog.Warn("shared rate limiter failed, using local limiter", "error", err)
	}
	return rl.getLimiter(uid).Allow()
}

// Prune drops local limiters idle for longer than idle.
func (rl *RateLimiter) Prune(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	for uid, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, uid)
		}
	}
}

// Cleanup prunes idle limiters every five minutes until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Prune(10 * time.Minute)
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated user
func RateLimitMiddleware(rl *RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ContextUID)
		if uid == "" {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid, action) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
