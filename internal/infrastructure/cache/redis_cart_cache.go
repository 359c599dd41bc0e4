package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foodcourt/storefront/internal/domain/cart"
)

// RedisCartCache stores serialized carts in Redis with a sliding TTL
type RedisCartCache struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewRedisCartCache creates a cache over an existing client. A zero ttl
// keeps entries forever.
func NewRedisCartCache(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisCartCache {
	return &RedisCartCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisCartCache) key(k string) string {
	return c.keyPrefix + k
}

// Get implements cart.LocalCache
func (c *RedisCartCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if c.ttl > 0 {
		// refresh so active carts do not expire mid-session
		c.client.Expire(ctx, c.key(key), c.ttl)
	}
	return data, true, nil
}

// Set implements cart.LocalCache
func (c *RedisCartCache) Set(ctx context.Context, key string, data []byte) error {
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove implements cart.LocalCache
func (c *RedisCartCache) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

var _ cart.LocalCache = (*RedisCartCache)(nil)
