package repository

import (
	"context"
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
	domrepo "ChainPilot/internal/domain/repository"
)

// MemoryStorage is a bounded in-memory Storage used when ClickHouse is
// disabled. Keeps the most recent rows only.
type MemoryStorage struct {
	mu        sync.Mutex
	maxRows   int
	decisions []*models.DecisionRecord
	orders    []*models.Order
}

// NewMemoryStorage creates in-memory audit storage.
func NewMemoryStorage(maxRows int) domrepo.Storage {
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &MemoryStorage{maxRows: maxRows}
}

func (m *MemoryStorage) StoreDecision(_ context.Context, rec *models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	if len(m.decisions) > m.maxRows {
		m.decisions = m.decisions[len(m.decisions)-m.maxRows:]
	}
	return nil
}

func (m *MemoryStorage) StoreOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	if len(m.orders) > m.maxRows {
		m.orders = m.orders[len(m.orders)-m.maxRows:]
	}
	return nil
}

func (m *MemoryStorage) QueryOrders(_ context.Context, status string, from, to time.Time, limit int) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for i := len(m.orders) - 1; i >= 0 && len(out) < limit; i-- {
		o := m.orders[i]
		if status != "" && string(o.Status) != status {
			continue
		}
		if o.CreatedAt.Before(from) || o.CreatedAt.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MemoryStorage) Health(context.Context) error { return nil }
func (m *MemoryStorage) Close() error                 { return nil }

// NoopPublisher discards events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishDecision(context.Context, *models.DecisionRecord) error { return nil }
func (NoopPublisher) PublishOrder(context.Context, *models.Order) error             { return nil }
func (NoopPublisher) PublishBreakerEvent(context.Context, *models.BreakerEvent) error {
	return nil
}
func (NoopPublisher) Close() error { return nil }

var _ domrepo.Publisher = NoopPublisher{}
