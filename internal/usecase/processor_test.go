package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creasty/defaults"

	"ChainPilot/internal/domain/models"
	"ChainPilot/internal/services/execution"
	"ChainPilot/internal/services/reputation"
	"ChainPilot/internal/services/risk"
	"ChainPilot/pkg/config"
	"ChainPilot/pkg/logger"
)

const (
	testWallet = "7xKWqmHjrRgnBfCdEfGhJkLmNpQrStUvWxYz12345678"
	testToken  = "So11111111111111111111111111111111111111112"
)

type fakeWalletStore struct {
	mu      sync.Mutex
	entries map[string]models.ReputationEntry
	err     error
}

func (f *fakeWalletStore) GetReputation(_ context.Context, address string) (models.ReputationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.ReputationEntry{}, f.err
	}
	if e, ok := f.entries[address]; ok {
		return e, nil
	}
	return models.ReputationEntry{Address: address, TTL: time.Minute}, nil
}

type fakeCluster struct {
	info models.ClusterInfo
	err  error
}

func (f *fakeCluster) GetClusterInfo(context.Context, string) (models.ClusterInfo, error) {
	return f.info, f.err
}

type fakeSafety struct {
	res models.TokenSafetyResult
	err error
}

func (f *fakeSafety) Evaluate(context.Context, string) (models.TokenSafetyResult, error) {
	return f.res, f.err
}

type fakePortfolio struct {
	view models.PortfolioView
	err  error
}

func (f *fakePortfolio) View(context.Context) (models.PortfolioView, error) {
	return f.view, f.err
}

type recordingStorage struct {
	mu        sync.Mutex
	decisions []*models.DecisionRecord
	orders    []*models.Order
}

func (r *recordingStorage) StoreDecision(_ context.Context, rec *models.DecisionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, rec)
	return nil
}

func (r *recordingStorage) StoreOrder(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return nil
}

func (r *recordingStorage) QueryOrders(context.Context, string, time.Time, time.Time, int) ([]*models.Order, error) {
	return nil, nil
}
func (r *recordingStorage) Health(context.Context) error { return nil }
func (r *recordingStorage) Close() error                 { return nil }

func (r *recordingStorage) last() *models.DecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.decisions) == 0 {
		return nil
	}
	return r.decisions[len(r.decisions)-1]
}

type nopPublisher struct{}

func (nopPublisher) PublishDecision(context.Context, *models.DecisionRecord) error { return nil }
func (nopPublisher) PublishOrder(context.Context, *models.Order) error             { return nil }
func (nopPublisher) PublishBreakerEvent(context.Context, *models.BreakerEvent) error {
	return nil
}
func (nopPublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string)            {}
func (nopMetrics) RecordScore(float64)            {}
func (nopMetrics) RecordSizing(string)            {}
func (nopMetrics) RecordOrder(string)             {}
func (nopMetrics) RecordBreakerState(string, string) {}
func (nopMetrics) RecordQueueDepth(int)           {}
func (nopMetrics) RecordInFlight(int)             {}
func (nopMetrics) RecordError(string)             {}
func (nopMetrics) RecordLatency(string, float64)  {}

type instantTrader struct{}

func (instantTrader) ExecuteBuy(_ context.Context, token string, amountSOL float64, _ int) (models.Fill, error) {
	return models.Fill{Token: token, AmountSOL: amountSOL, FilledAt: time.Now()}, nil
}

func (instantTrader) ExecuteSell(_ context.Context, token string, amountSOL float64, _ int) (models.Fill, error) {
	return models.Fill{Token: token, AmountSOL: amountSOL, FilledAt: time.Now()}, nil
}

type procFixture struct {
	proc    *SignalProcessor
	bank    *risk.Bank
	queue   *execution.Queue
	exec    *execution.Executor
	storage *recordingStorage
	store   *fakeWalletStore
	cluster *fakeCluster
	safety  *fakeSafety
	folio   *fakePortfolio
}

func newFixture(t *testing.T) *procFixture {
	t.Helper()

	cfg := &config.Config{}
	if err := defaults.Set(cfg); err != nil {
		t.Fatalf("defaults: %v", err)
	}

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	store := &fakeWalletStore{entries: map[string]models.ReputationEntry{
		testWallet: {
			Address:         testWallet,
			IsMonitored:     true,
			ReputationScore: 0.8,
			TTL:             time.Minute,
		},
	}}
	cluster := &fakeCluster{info: models.ClusterInfo{AmplificationFactor: 1.0}}
	safety := &fakeSafety{res: models.TokenSafetyResult{Safe: true}}
	folio := &fakePortfolio{view: models.PortfolioView{BalanceSOL: 101, OpenPositions: 0}}
	storage := &recordingStorage{}

	bank := risk.NewBank(risk.DefaultConfig())
	queue := execution.NewQueue()
	exec := execution.NewExecutor(queue, instantTrader{}, execution.WithMetrics(nopMetrics{}))

	cache := reputation.NewCache(store)
	filter := NewSignalFilter(cache, nopMetrics{})
	proc := NewSignalProcessor(
		config.NewStore("", cfg),
		filter, cluster, safety, bank, exec, folio,
		storage, nopPublisher{}, nopMetrics{}, log,
	)

	return &procFixture{
		proc: proc, bank: bank, queue: queue, exec: exec,
		storage: storage, store: store, cluster: cluster,
		safety: safety, folio: folio,
	}
}

func testSignal(dir models.TradeDirection) *models.Signal {
	return &models.Signal{
		TxSignature: "5VfYmGBn2QwErTyUiOpAsDfGhJkL",
		Wallet:      testWallet,
		Token:       testToken,
		Direction:   dir,
		TokenAmount: 1000,
		SolAmount:   2,
		Timestamp:   time.Now(),
	}
}

func TestFilterBlacklistWinsOverMonitored(t *testing.T) {
	f := newFixture(t)
	f.store.entries[testWallet] = models.ReputationEntry{
		Address:       testWallet,
		IsMonitored:   true,
		IsBlacklisted: true,
		TTL:           time.Minute,
	}

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	rec := f.storage.last()
	if rec == nil || rec.FilterStatus != models.FilterBlacklisted {
		t.Fatalf("expected BLOCKED_BLACKLISTED record, got %+v", rec)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("blacklisted signal must not enqueue an order")
	}
}

func TestFilterNotMonitored(t *testing.T) {
	f := newFixture(t)
	f.store.entries[testWallet] = models.ReputationEntry{
		Address: testWallet,
		TTL:     time.Minute,
	}

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	rec := f.storage.last()
	if rec == nil || rec.FilterStatus != models.FilterNotMonitored {
		t.Fatalf("expected DISCARDED_NOT_MONITORED record, got %+v", rec)
	}
}

func TestFilterLookupFailureDropsWithoutRaising(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("store down")

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("lookup failure must not propagate, got %v", err)
	}
	rec := f.storage.last()
	if rec == nil || rec.FilterStatus != models.FilterError {
		t.Fatalf("expected ERROR record, got %+v", rec)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("dropped signal must not enqueue an order")
	}
}

func TestProcessEnqueuesSizedOrder(t *testing.T) {
	f := newFixture(t)

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := f.queue.Len(); got != 1 {
		t.Fatalf("queue depth = %d, want 1", got)
	}
	o, ok := f.queue.Dequeue()
	if !ok {
		t.Fatalf("dequeue failed")
	}
	// base 0.05 x allocatable 100 x multiplier 1.0 x reduction 1.0
	if o.AmountSOL != 5.0 {
		t.Fatalf("order size = %v, want 5.0", o.AmountSOL)
	}
	if o.Priority != models.PriorityEntryBase {
		t.Fatalf("entry priority = %d, want %d", o.Priority, models.PriorityEntryBase)
	}
	if !strings.HasPrefix(o.ID, "5VfYmGBn2QwE") {
		t.Fatalf("order id %q not derived from tx signature", o.ID)
	}

	rec := f.storage.last()
	if rec == nil || rec.Outcome != models.SizingTrade || !rec.Passed {
		t.Fatalf("expected TRADE decision record, got %+v", rec)
	}
}

func TestProcessExitOutranksEntries(t *testing.T) {
	f := newFixture(t)

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionSell)); err != nil {
		t.Fatalf("process: %v", err)
	}
	o, ok := f.queue.Dequeue()
	if !ok {
		t.Fatalf("dequeue failed")
	}
	if o.Priority != models.PriorityExit {
		t.Fatalf("exit priority = %d, want %d", o.Priority, models.PriorityExit)
	}
}

func TestProcessBelowThresholdNoOrder(t *testing.T) {
	f := newFixture(t)
	e := f.store.entries[testWallet]
	e.ReputationScore = 0.5
	f.store.entries[testWallet] = e

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("below-threshold signal must not enqueue an order")
	}
	rec := f.storage.last()
	if rec == nil || rec.Passed || rec.Outcome != models.SizingSkip {
		t.Fatalf("expected SKIP record, got %+v", rec)
	}
}

func TestProcessUnsafeTokenZeroesScore(t *testing.T) {
	f := newFixture(t)
	f.safety.res = models.TokenSafetyResult{Safe: false, RejectReason: "honeypot"}

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	rec := f.storage.last()
	if rec == nil || rec.FinalScore != 0 || rec.Passed {
		t.Fatalf("unsafe token must zero score, got %+v", rec)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("unsafe token must not enqueue an order")
	}
}

func TestProcessClusterLookupFailureIsNeutral(t *testing.T) {
	f := newFixture(t)
	f.cluster.err = errors.New("cluster service down")

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	rec := f.storage.last()
	if rec == nil || rec.FinalScore != 0.8 {
		t.Fatalf("cluster failure must degrade to neutral boost, score = %v", rec.FinalScore)
	}
	if f.queue.Len() != 1 {
		t.Fatalf("neutral degrade should still trade when above threshold")
	}
}

func TestProcessSafetyLookupFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.safety.err = errors.New("safety service down")

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("safety lookup failure must fail closed")
	}
	rec := f.storage.last()
	if rec == nil || rec.FinalScore != 0 {
		t.Fatalf("fail-closed record should carry zero score, got %+v", rec)
	}
}

func TestProcessPausedBlocksRisk(t *testing.T) {
	f := newFixture(t)
	f.bank.Pause("maintenance")

	if err := f.proc.Process(context.Background(), testSignal(models.DirectionBuy)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("paused system must not enqueue an order")
	}
	rec := f.storage.last()
	if rec == nil || rec.Outcome != models.SizingBlockedRisk {
		t.Fatalf("expected BLOCKED_RISK record, got %+v", rec)
	}
}

func TestProcessRejectsMalformedSignal(t *testing.T) {
	f := newFixture(t)
	s := testSignal(models.DirectionBuy)
	s.Wallet = "short"

	err := f.proc.Process(context.Background(), s)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.queue.Len() != 0 {
		t.Fatalf("malformed signal must not enqueue an order")
	}
}
