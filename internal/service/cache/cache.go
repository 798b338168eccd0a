// Package cache provides the short-TTL response cache in front of the ops
// API's order queries.
package cache

import "time"

// BytesCache stores serialized responses keyed by request shape.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
