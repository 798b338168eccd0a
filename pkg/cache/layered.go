package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level Service: an in-process L1 in front of Redis.
// Writes go through to Redis first; an L2 hit is promoted into L1 with a
// short TTL so a hot key stops round-tripping.
type LayeredCache struct {
	mem        *MemoryCache
	redis      *RedisCache
	promoteTTL time.Duration
}

// NewLayeredCache creates a layered cache over the given Redis backend.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		PromoteTTL:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:        NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis:      redisCache,
		promoteTTL: cfg.PromoteTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	l1TTL := ttl
	if l1TTL <= 0 || l1TTL > lc.promoteTTL {
		l1TTL = lc.promoteTTL
	}
	_ = lc.mem.Set(ctx, key, value, l1TTL)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}

	var raw string
	if err := lc.redis.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, raw, lc.promoteTTL)
	return decode([]byte(raw), dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.redis.Delete(ctx, keys...)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.redis.Close()
}

var _ Service = (*LayeredCache)(nil)
