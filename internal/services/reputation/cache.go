package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
	"ChainPilot/internal/domain/repository"
	pkgcache "ChainPilot/pkg/cache"
)

// Option configures the Cache.
type Option func(*Cache)

// WithMaxEntries sets the LRU capacity.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL sets the entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRefreshTimeout bounds a single backing-store refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithL2 attaches a second-level cache (Redis) consulted before the
// wallet store on a miss and written through on refresh.
func WithL2(l2 pkgcache.Service) Option {
	return func(c *Cache) {
		c.l2 = l2
	}
}

// WithMetrics attaches hit/miss observability.
func WithMetrics(m repository.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

type inflight struct {
	done  chan struct{}
	entry models.ReputationEntry
	err   error
}

// Cache is a TTL-bounded, LRU-evicted cache of wallet reputation state.
// A miss or expiry triggers exactly one backing-store refresh per address;
// concurrent callers for the same address wait on the in-flight refresh.
type Cache struct {
	store          repository.WalletStore
	l2             pkgcache.Service
	metrics        repository.Metrics
	maxEntries     int
	ttl            time.Duration
	refreshTimeout time.Duration

	mu       sync.Mutex
	entries  map[string]*models.ReputationEntry
	access   map[string]time.Time
	inFlight map[string]*inflight

	hits   int64
	misses int64
}

// NewCache creates a reputation cache over the given wallet store.
func NewCache(store repository.WalletStore, opts ...Option) *Cache {
	c := &Cache{
		store:          store,
		maxEntries:     10000,
		ttl:            300 * time.Second,
		refreshTimeout: 50 * time.Millisecond,
		entries:        make(map[string]*models.ReputationEntry),
		access:         make(map[string]time.Time),
		inFlight:       make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the current entry for address, refreshing on miss or expiry.
// A backing-store failure returns models.ErrLookupFailure, never panics.
func (c *Cache) Get(ctx context.Context, address string) (models.ReputationEntry, error) {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[address]; ok && !e.Expired(now) {
		c.access[address] = now
		c.hits++
		entry := *e
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordLatency("reputation_hit", time.Since(now).Seconds())
		}
		return entry, nil
	}

	// Miss or expired: join an in-flight refresh if one exists.
	if fl, ok := c.inFlight[address]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.entry, fl.err
		case <-ctx.Done():
			return models.ReputationEntry{}, fmt.Errorf("reputation wait: %w", ctx.Err())
		}
	}

	fl := &inflight{done: make(chan struct{})}
	c.inFlight[address] = fl
	c.misses++
	c.mu.Unlock()

	entry, err := c.refresh(ctx, address)
	fl.entry, fl.err = entry, err

	c.mu.Lock()
	delete(c.inFlight, address)
	if err == nil {
		if len(c.entries) >= c.maxEntries {
			c.evictLRU()
		}
		stored := entry
		c.entries[address] = &stored
		c.access[address] = time.Now()
	}
	c.mu.Unlock()
	close(fl.done)

	return entry, err
}

// refresh loads the entry from L2 then the wallet store, bounded by the
// refresh timeout so lookups stay inside the ingestion latency budget.
func (c *Cache) refresh(ctx context.Context, address string) (models.ReputationEntry, error) {
	rctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	if c.l2 != nil {
		var raw string
		if err := c.l2.Get(rctx, l2Key(address), &raw); err == nil && raw != "" {
			var e models.ReputationEntry
			if jerr := json.Unmarshal([]byte(raw), &e); jerr == nil && !e.Expired(time.Now()) {
				return e, nil
			}
		}
	}

	got, err := c.store.GetReputation(rctx, address)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordError("reputation_refresh")
		}
		return models.ReputationEntry{}, fmt.Errorf("%w: reputation %s: %v", models.ErrLookupFailure, address, err)
	}

	got.Address = address
	got.CachedAt = time.Now()
	got.TTL = c.ttl

	if c.l2 != nil {
		if b, jerr := json.Marshal(got); jerr == nil {
			_ = c.l2.Set(rctx, l2Key(address), string(b), c.ttl)
		}
	}
	return got, nil
}

// Stats returns hit/miss counters and current size.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}

// evictLRU removes the least recently accessed entry. Caller holds mu.
func (c *Cache) evictLRU() {
	var oldestKey string
	oldestTime := time.Now()
	for key, at := range c.access {
		if at.Before(oldestTime) {
			oldestTime = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		delete(c.access, oldestKey)
	}
}

func l2Key(address string) string {
	return pkgcache.GenerateKey("rep", address)
}
