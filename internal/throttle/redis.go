package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a throttle cache shared across processes. Keys expire at the
// sweep horizon so Redis does its own cleanup.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed throttle cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "mailroom:throttle:"}
}

// Last returns the recorded send time for key.
func (c *RedisCache) Last(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("throttle get: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// MarkSent records a successful send for key with a TTL at the horizon.
func (c *RedisCache) MarkSent(ctx context.Context, key string, t time.Time) error {
	if err := c.client.Set(ctx, c.prefix+key, t.Format(time.RFC3339Nano), Horizon).Err(); err != nil {
		return fmt.Errorf("throttle set: %w", err)
	}
	return nil
}
