package repository

import (
	"context"
	"time"

	"ChainPilot/internal/domain/models"
)

// SignalStream delivers raw wallet-activity signals from the monitor.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Signal, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// WalletStore is the backing store behind the reputation cache.
type WalletStore interface {
	GetReputation(ctx context.Context, address string) (models.ReputationEntry, error)
}

// ClusterService supplies precomputed cluster membership and leadership.
type ClusterService interface {
	GetClusterInfo(ctx context.Context, address string) (models.ClusterInfo, error)
}

// TokenSafety is the binary token-safety gate.
type TokenSafety interface {
	Evaluate(ctx context.Context, token string) (models.TokenSafetyResult, error)
}

// TradeExecutor performs the actual swap. The live or simulated variant is
// chosen once at construction, never toggled per call.
type TradeExecutor interface {
	ExecuteBuy(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error)
	ExecuteSell(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error)
}

// Portfolio exposes the capital snapshot consumed by the position sizer.
type Portfolio interface {
	View(ctx context.Context) (models.PortfolioView, error)
}

// Publisher emits decision, order, and breaker events for downstream
// collaborators.
type Publisher interface {
	PublishDecision(ctx context.Context, rec *models.DecisionRecord) error
	PublishOrder(ctx context.Context, o *models.Order) error
	PublishBreakerEvent(ctx context.Context, ev *models.BreakerEvent) error
	Close() error
}

// Storage persists decision and order audit rows.
type Storage interface {
	StoreDecision(ctx context.Context, rec *models.DecisionRecord) error
	StoreOrder(ctx context.Context, o *models.Order) error
	QueryOrders(ctx context.Context, status string, from, to time.Time, limit int) ([]*models.Order, error)
	Health(ctx context.Context) error
	Close() error
}

// AlertSink receives operator-facing alerts (breaker transitions,
// retry-exhausted orders).
type AlertSink interface {
	Alert(ctx context.Context, severity, title string, payload interface{}) error
}

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordSignal(status string)
	RecordScore(score float64)
	RecordSizing(outcome string)
	RecordOrder(status string)
	RecordBreakerState(kind string, state string)
	RecordQueueDepth(depth int)
	RecordInFlight(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
