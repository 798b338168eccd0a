package reputation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

type fakeWalletStore struct {
	mu    sync.Mutex
	calls int32
	delay time.Duration
	err   error
	entry models.ReputationEntry
}

func (f *fakeWalletStore) GetReputation(ctx context.Context, address string) (models.ReputationEntry, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.ReputationEntry{}, ctx.Err()
		}
	}
	if f.err != nil {
		return models.ReputationEntry{}, f.err
	}
	e := f.entry
	e.Address = address
	return e, nil
}

func TestGetCachesEntry(t *testing.T) {
	store := &fakeWalletStore{entry: models.ReputationEntry{IsMonitored: true, ReputationScore: 0.8}}
	c := NewCache(store, WithTTL(time.Minute))

	e1, err := c.Get(context.Background(), "wallet-a")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if !e1.IsMonitored || e1.ReputationScore != 0.8 {
		t.Fatalf("unexpected entry %+v", e1)
	}

	if _, err := c.Get(context.Background(), "wallet-a"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := atomic.LoadInt32(&store.calls); got != 1 {
		t.Fatalf("expected 1 backing call, got %d", got)
	}
	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Fatalf("unexpected stats hits=%d misses=%d size=%d", hits, misses, size)
	}
}

func TestGetExpiredRefreshes(t *testing.T) {
	store := &fakeWalletStore{entry: models.ReputationEntry{IsMonitored: true}}
	c := NewCache(store, WithTTL(10*time.Millisecond))

	if _, err := c.Get(context.Background(), "wallet-a"); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), "wallet-a"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := atomic.LoadInt32(&store.calls); got != 2 {
		t.Fatalf("expected refresh after expiry, calls=%d", got)
	}
}

func TestConcurrentMissSingleRefresh(t *testing.T) {
	store := &fakeWalletStore{
		entry: models.ReputationEntry{IsMonitored: true},
		delay: 20 * time.Millisecond,
	}
	c := NewCache(store, WithRefreshTimeout(time.Second))

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "wallet-a")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent get: %v", err)
		}
	}
	if got := atomic.LoadInt32(&store.calls); got != 1 {
		t.Fatalf("expected single in-flight refresh, calls=%d", got)
	}
}

func TestBackingStoreFailureIsLookupFailure(t *testing.T) {
	store := &fakeWalletStore{err: errors.New("boom")}
	c := NewCache(store)

	_, err := c.Get(context.Background(), "wallet-a")
	if !errors.Is(err, models.ErrLookupFailure) {
		t.Fatalf("expected ErrLookupFailure, got %v", err)
	}

	// A failed refresh must not populate the cache.
	_, _, size := c.Stats()
	if size != 0 {
		t.Fatalf("expected empty cache after failure, size=%d", size)
	}
}

func TestLRUEviction(t *testing.T) {
	store := &fakeWalletStore{entry: models.ReputationEntry{IsMonitored: true}}
	c := NewCache(store, WithMaxEntries(2))

	ctx := context.Background()
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("get a: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := c.Get(ctx, "b"); err != nil {
		t.Fatalf("get b: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	// Touch a so b is the LRU victim.
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("touch a: %v", err)
	}
	if _, err := c.Get(ctx, "c"); err != nil {
		t.Fatalf("get c: %v", err)
	}

	c.mu.Lock()
	_, hasA := c.entries["a"]
	_, hasB := c.entries["b"]
	c.mu.Unlock()
	if !hasA || hasB {
		t.Fatalf("expected b evicted, a kept (a=%v b=%v)", hasA, hasB)
	}
}
