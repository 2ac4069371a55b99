// Package ratelimit bounds how many short links a user may mint per hour:
// a fixed-window counter per user id with a hard cliff at the window edge.
package ratelimit

import (
	"Linklytics-Backend/internal/auth"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter is the atomic counter store backing the limiter. Incr returns the
// counter value after incrementing; Expire arms the window TTL.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCounter implements Counter on Redis. INCR is atomic server-side, so
// concurrent requests never under-count.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// Limiter is the fixed-window rate limiter.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	log     *zap.Logger
}

func New(counter Counter, limit int, window time.Duration, log *zap.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		log:     log,
	}
}

// Allow increments the user's window counter and reports whether the request
// is inside the limit. The counter store being unreachable fails open: the
// limiter is auxiliary and must never take the shorten path down with it.
func (l *Limiter) Allow(ctx context.Context, userID int64) bool {
	key := fmt.Sprintf("rate-limit:%d", userID)

	count, err := l.counter.Incr(ctx, key)
	if err != nil {
		l.log.Error("rate limit counter unavailable, failing open", zap.Int64("user_id", userID), zap.Error(err))
		return true
	}

	// First request in a fresh window arms the expiry.
	if count == 1 {
		if err := l.counter.Expire(ctx, key, l.window); err != nil {
			l.log.Error("failed to arm rate limit window", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return count <= l.limit
}

// Middleware rejects requests over the limit with 429. It must run after the
// auth middleware, since the window is keyed by user id.
func (l *Limiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		if !l.Allow(r.Context(), userID) {
			l.log.Debug("rate limit exceeded", zap.Int64("user_id", userID))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Rate limit exceeded. Try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	}
}
