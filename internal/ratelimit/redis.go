package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window counter shared by every instance using the same server.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis counts in fixed windows under "<prefix>:<key>". A trailing colon on
// prefix is dropped.
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *Redis {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow increments the window counter for key. On a Redis error the request
// is allowed and the error returned so the caller can log it.
func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		// First hit in this window, or a key that lost its expiry.
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{Allowed: true, Limit: l.limit}, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
		remainingTTL = l.window
	}

	count := int(incr.Val())
	if count > l.limit {
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: remainingTTL}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - count}, nil
}
