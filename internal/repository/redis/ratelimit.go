package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bokzor/revenue-boost/internal/domain"
)

const rateLimitKeyPrefix = "rb:ratelimit:"

// RateLimiter implements repository.RateLimiter with a fixed-window counter
// in Redis. INCR is atomic, so concurrent requests cannot corrupt the count;
// the window boundary is set by the first increment's EXPIRE.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new Redis-backed rate limiter.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow consumes one attempt for the identifier and reports whether it is
// still within the limit.
func (l *RateLimiter) Allow(ctx context.Context, identifier, operation string, limit domain.RateLimit) (bool, error) {
	key := rateLimitKeyPrefix + operation + ":" + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr rate limit: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, limit.Window).Err(); err != nil {
			return false, fmt.Errorf("redis expire rate limit: %w", err)
		}
	}

	return count <= int64(limit.Max), nil
}
