package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

// blockingTrader holds every execution until released, counting the peak
// number of concurrent calls.
type blockingTrader struct {
	mu      sync.Mutex
	current int32
	peak    int32
	release chan struct{}
	calls   int32
}

func newBlockingTrader() *blockingTrader {
	return &blockingTrader{release: make(chan struct{})}
}

func (b *blockingTrader) exec(ctx context.Context) (models.Fill, error) {
	atomic.AddInt32(&b.calls, 1)
	b.mu.Lock()
	b.current++
	if b.current > b.peak {
		b.peak = b.current
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.current--
		b.mu.Unlock()
	}()
	select {
	case <-b.release:
		return models.Fill{TxSignature: "sig", FilledAt: time.Now()}, nil
	case <-ctx.Done():
		return models.Fill{}, ctx.Err()
	}
}

func (b *blockingTrader) ExecuteBuy(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return b.exec(ctx)
}

func (b *blockingTrader) ExecuteSell(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return b.exec(ctx)
}

// failNTrader fails the first n executions, then succeeds.
type failNTrader struct {
	fails int32
}

func (f *failNTrader) exec() (models.Fill, error) {
	if atomic.AddInt32(&f.fails, -1) >= 0 {
		return models.Fill{}, errors.New("rpc timeout")
	}
	return models.Fill{TxSignature: "sig", FillPrice: 1.5, FilledAt: time.Now()}, nil
}

func (f *failNTrader) ExecuteBuy(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return f.exec()
}

func (f *failNTrader) ExecuteSell(ctx context.Context, token string, amountSOL float64, slippageBps int) (models.Fill, error) {
	return f.exec()
}

type captureAlerts struct {
	mu     sync.Mutex
	titles []string
}

func (c *captureAlerts) Alert(ctx context.Context, severity, title string, payload interface{}) error {
	c.mu.Lock()
	c.titles = append(c.titles, title)
	c.mu.Unlock()
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestBoundedConcurrency(t *testing.T) {
	// Scenario D: max_concurrent 3, 5 pending orders.
	trader := newBlockingTrader()
	q := NewQueue()
	e := NewExecutor(q, trader, WithMaxConcurrent(3))
	e.Start(context.Background())
	defer e.Shutdown(time.Second)

	for i := 0; i < 5; i++ {
		if err := e.Submit(order(fmt.Sprintf("o%d", i), 10)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	waitFor(t, time.Second, func() bool {
		trader.mu.Lock()
		defer trader.mu.Unlock()
		return trader.current == 3
	})
	trader.mu.Lock()
	if trader.peak != 3 {
		trader.mu.Unlock()
		t.Fatalf("expected exactly 3 concurrent, peak=%d", trader.peak)
	}
	trader.mu.Unlock()

	// Completion of one immediately starts a 4th.
	trader.release <- struct{}{}
	waitFor(t, time.Second, func() bool {
		return atomic.LoadInt32(&trader.calls) >= 4
	})

	close(trader.release)
	waitFor(t, time.Second, func() bool { return e.Stats().Succeeded == 5 })
}

func TestRetryThenSuccess(t *testing.T) {
	trader := &failNTrader{fails: 1}
	q := NewQueue()
	var outcomes []models.TradeOutcome
	var mu sync.Mutex
	e := NewExecutor(q, trader,
		WithMaxConcurrent(1),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, BaseBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}),
		WithOutcomeFunc(func(o models.TradeOutcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		}),
	)
	e.Start(context.Background())
	defer e.Shutdown(time.Second)

	o := order("retry-1", 10)
	if err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return e.Stats().Succeeded == 1 })
	if o.RetryCount != 1 {
		t.Fatalf("expected 1 retry, got %d", o.RetryCount)
	}
	if o.Status != models.OrderSuccess {
		t.Fatalf("expected SUCCESS, got %s", o.Status)
	}
	if s := e.Stats(); s.Retried != 1 {
		t.Fatalf("expected retried=1, got %d", s.Retried)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 1 || !outcomes[0].Win {
		t.Fatalf("expected single winning outcome, got %+v", outcomes)
	}
}

func TestRetryExhaustionAlerts(t *testing.T) {
	trader := &failNTrader{fails: 100}
	alerts := &captureAlerts{}
	q := NewQueue()
	e := NewExecutor(q, trader,
		WithMaxConcurrent(1),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, BaseBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}),
		WithAlertSink(alerts),
	)
	e.Start(context.Background())
	defer e.Shutdown(time.Second)

	o := order("doomed", 10)
	if err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return e.Stats().Failed == 1 })
	if o.Status != models.OrderFailed {
		t.Fatalf("expected FAILED, got %s", o.Status)
	}
	if o.RetryCount != 2 {
		t.Fatalf("expected 2 retries, got %d", o.RetryCount)
	}
	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	if len(alerts.titles) != 1 {
		t.Fatalf("expected 1 alert, got %v", alerts.titles)
	}
}

func TestUpdateSettingsAppliesNewRetryPolicy(t *testing.T) {
	trader := &failNTrader{fails: 100}
	q := NewQueue()
	e := NewExecutor(q, trader,
		WithMaxConcurrent(1),
		WithRetryPolicy(RetryPolicy{MaxRetries: 5, BaseBackoff: 10 * time.Second, MaxBackoff: 10 * time.Second}),
	)

	// Tightened at runtime: no retry budget at all.
	e.UpdateSettings(
		RetryPolicy{MaxRetries: 0, BaseBackoff: 5 * time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		DefaultStageTimeouts(),
	)
	e.Start(context.Background())
	defer e.Shutdown(time.Second)

	o := order("no-budget", 10)
	if err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, time.Second, func() bool { return e.Stats().Failed == 1 })
	if o.RetryCount != 0 {
		t.Fatalf("expected no retries under the updated policy, got %d", o.RetryCount)
	}
}

func TestShutdownCancelsRetryBackoff(t *testing.T) {
	trader := &failNTrader{fails: 100}
	q := NewQueue()
	var outcomes []models.TradeOutcome
	var mu sync.Mutex
	e := NewExecutor(q, trader,
		WithMaxConcurrent(1),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, BaseBackoff: 10 * time.Second, MaxBackoff: 10 * time.Second}),
		WithOutcomeFunc(func(o models.TradeOutcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		}),
	)
	e.Start(context.Background())

	o := order("backed-off", 10)
	if err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return e.Stats().Retried == 1 })

	// The order now sits on a 10s backoff timer; shutdown must not leave it
	// without a terminal status.
	e.Shutdown(100 * time.Millisecond)

	if o.Status != models.OrderCancelled {
		t.Fatalf("expected CANCELLED, got %s", o.Status)
	}
	if !o.Status.Terminal() {
		t.Fatalf("status %s is not terminal", o.Status)
	}
	if s := e.Stats(); s.Cancelled != 1 {
		t.Fatalf("expected cancelled=1, got %+v", s)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != 0 {
		t.Fatalf("cancellation must not feed the breakers, got %+v", outcomes)
	}
}

func TestStateMachineOrdering(t *testing.T) {
	trader := &failNTrader{fails: 0}
	q := NewQueue()
	e := NewExecutor(q, trader, WithMaxConcurrent(1))
	e.Start(context.Background())
	defer e.Shutdown(time.Second)

	o := order("stages", 10)
	if err := e.Submit(o); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, time.Second, func() bool { return e.Stats().Succeeded == 1 })

	var seq []models.OrderStatus
	for _, h := range o.History {
		seq = append(seq, h.To)
	}
	want := []models.OrderStatus{
		models.OrderQuoting, models.OrderSigning, models.OrderSubmitted,
		models.OrderConfirming, models.OrderSuccess,
	}
	if len(seq) != len(want) {
		t.Fatalf("history %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("stage %d: got %s want %s", i, seq[i], want[i])
		}
	}
}

func TestShutdownCancelsPending(t *testing.T) {
	trader := newBlockingTrader()
	q := NewQueue()
	e := NewExecutor(q, trader, WithMaxConcurrent(1))
	e.Start(context.Background())

	first := order("inflight", 10)
	second := order("pending", 5)
	_ = e.Submit(first)
	_ = e.Submit(second)

	waitFor(t, time.Second, func() bool {
		trader.mu.Lock()
		defer trader.mu.Unlock()
		return trader.current == 1
	})

	done := make(chan struct{})
	go func() {
		e.Shutdown(50 * time.Millisecond)
		close(done)
	}()
	// Let the in-flight order finish after the drain deadline passes.
	time.Sleep(100 * time.Millisecond)
	close(trader.release)
	<-done

	if second.Status != models.OrderCancelled {
		t.Fatalf("expected pending order cancelled, got %s", second.Status)
	}
	if err := e.Submit(order("late", 1)); err == nil {
		t.Fatalf("expected submit refused after shutdown")
	}
}
