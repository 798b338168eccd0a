// Package cache provides the get/set cache surface used as the second level
// under the reputation cache, with in-memory, Redis, and layered backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the cache surface the rest of the code consumes. Values are
// JSON-encoded on write; plain strings pass through untouched.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
