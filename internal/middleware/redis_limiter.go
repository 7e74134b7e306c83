package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibrbtv/backend/internal/logging"
)

// RedisLimiter is a fixed-window limiter shared by every instance pointed at
// the same Redis.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows `requests`+`burst` events per window and key.
func NewRedisLimiter(client redis.Cmdable, prefix string, requests int, window time.Duration, burst int) *RedisLimiter {
	if prefix == "" {
		prefix = "ibrbtv:ratelimit:"
	}
	if requests <= 0 {
		requests = 1
	}
	if burst < 0 {
		burst = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(requests + burst),
		window: window,
	}
}

// Allow counts the request in the current window. Redis errors are logged
// and fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if key == "" {
		key = "unknown"
	}

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, l.prefix+key)
		pipe.ExpireNX(ctx, l.prefix+key, l.window)
		return nil
	})
	if err != nil {
		logging.FromContext(ctx).Error("rate limiter unavailable, allowing request",
			slog.String("key", key), slog.Any("error", err))
		return true
	}
	return incr.Val() <= l.limit
}

var _ RateLimiter = (*RedisLimiter)(nil)
