package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingCache is an optional read-through cache for effective setting
// lookups. Cache failures are treated as misses by the Manager; the storage
// row remains the source of truth.
type SettingCache interface {
	// Get returns the cached value for the key and whether it was present.
	Get(ctx context.Context, key string) (Value, bool, error)

	// Set stores the value under the key.
	Set(ctx context.Context, key string, value Value) error

	// Invalidate drops the given keys.
	Invalidate(ctx context.Context, keys ...string) error
}

// settingCacheKey derives a stable cache key for one exact setting lookup.
func settingCacheKey(provider Provider, t AlertType, scope Scope, recipient Recipient) string {
	return fmt.Sprintf("prefs:setting:%s:%s:%s:%d:%s:%d",
		provider, t, scope.Type, scope.ID, recipient.Kind, recipient.ID)
}

// RedisCache caches effective settings in Redis with a bounded TTL. Bulk
// deletes do not enumerate keys; staleness after a cascade delete is bounded
// by the TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultCacheTTL bounds staleness for entries that miss explicit
// invalidation (e.g. after a project-wide cascade delete).
const DefaultCacheTTL = 5 * time.Minute

// NewRedisCache creates a Redis-backed setting cache. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Value, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting cache: %w", err)
	}
	return Value(raw), true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value Value) error {
	if err := c.client.Set(ctx, key, string(value), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write setting cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate setting cache: %w", err)
	}
	return nil
}
