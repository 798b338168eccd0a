package config

import (
	"context"
	"os"
	"sync/atomic"
	"time"
)

// Store holds the live configuration snapshot. Thresholds, limits and
// weights are read from the snapshot on every decision, so edits to the
// config file apply without a restart.
type Store struct {
	path    string
	current atomic.Pointer[Config]
	modTime atomic.Int64
	onSwap  atomic.Pointer[func(*Config)]
}

// NewStore creates a Store seeded with the given config.
func NewStore(path string, c *Config) *Store {
	s := &Store{path: path}
	s.current.Store(c)
	if fi, err := os.Stat(path); err == nil {
		s.modTime.Store(fi.ModTime().UnixNano())
	}
	return s
}

// Snapshot returns the current config. The returned value must be treated
// as read-only; a decision reads one snapshot and never re-fetches mid-flight.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// OnSwap registers a callback invoked after each successful reload.
func (s *Store) OnSwap(fn func(*Config)) {
	s.onSwap.Store(&fn)
}

// Reload re-reads the config file and swaps the snapshot if it parses and
// validates. A broken file keeps the previous snapshot in place.
func (s *Store) Reload() error {
	c, err := LoadWithEnv(s.path)
	if err != nil {
		return err
	}
	s.current.Store(c)
	if fn := s.onSwap.Load(); fn != nil {
		(*fn)(c)
	}
	return nil
}

// Watch polls the config file mtime and reloads on change until ctx ends.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fi, err := os.Stat(s.path)
			if err != nil {
				continue
			}
			mt := fi.ModTime().UnixNano()
			if mt == s.modTime.Load() {
				continue
			}
			if err := s.Reload(); err == nil {
				s.modTime.Store(mt)
			}
		}
	}
}
