package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
	"ChainPilot/internal/domain/repository"
	"ChainPilot/pkg/logger"
)

// Quoter is the optional quoting capability of a trade executor. Variants
// without it pass through QUOTING using the order's expected price.
type Quoter interface {
	Quote(ctx context.Context, token string, amountSOL float64) (float64, error)
}

// Signer is the optional transaction-preparation capability.
type Signer interface {
	Sign(ctx context.Context, token string, amountSOL float64) error
}

// StageTimeouts bound how long an order may remain in each stage before
// being treated as failed for retry purposes.
type StageTimeouts struct {
	Quote   time.Duration
	Sign    time.Duration
	Submit  time.Duration
	Confirm time.Duration
}

// DefaultStageTimeouts returns the production defaults.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Quote:   5 * time.Second,
		Sign:    5 * time.Second,
		Submit:  10 * time.Second,
		Confirm: 30 * time.Second,
	}
}

// OutcomeFunc receives the realized outcome of each terminal order.
type OutcomeFunc func(models.TradeOutcome)

// OrderFunc receives every order status change for audit/publishing.
type OrderFunc func(*models.Order)

// Option configures the Executor.
type Option func(*Executor)

// WithMaxConcurrent sets the worker pool size.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithStageTimeouts sets per-stage timeouts.
func WithStageTimeouts(t StageTimeouts) Option {
	return func(e *Executor) { e.timeouts = t }
}

// WithOutcomeFunc sets the trade-outcome callback (breaker feedback).
func WithOutcomeFunc(fn OutcomeFunc) Option {
	return func(e *Executor) { e.onOutcome = fn }
}

// WithOrderFunc sets the order status-change callback (audit/publishing).
func WithOrderFunc(fn OrderFunc) Option {
	return func(e *Executor) { e.onOrder = fn }
}

// WithAlertSink sets the alert sink for retry-exhausted orders.
func WithAlertSink(s repository.AlertSink) Option {
	return func(e *Executor) { e.alerts = s }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// Executor drains the priority queue with a bounded worker pool, driving
// each order through its state machine with retries and per-stage timeouts.
type Executor struct {
	queue         *Queue
	trader        repository.TradeExecutor
	policy        RetryPolicy
	timeouts      StageTimeouts
	maxConcurrent int

	onOutcome OutcomeFunc
	onOrder   OrderFunc
	alerts    repository.AlertSink
	metrics   repository.Metrics
	log       *logger.Logger

	mu       sync.Mutex
	inFlight int
	stats    statCounters
	retryT   map[string]pendingRetry

	wg       sync.WaitGroup
	started  bool
	draining bool
}

// pendingRetry keeps the order next to its backoff timer so shutdown can
// terminate orders whose timers never fire.
type pendingRetry struct {
	order *models.Order
	timer *time.Timer
}

type statCounters struct {
	succeeded  int64
	failed     int64
	retried    int64
	cancelled  int64
	execSumMs  float64
	execCount  int64
	waitSumMs  float64
	waitCount  int64
}

// NewExecutor creates a queued executor over the given trade executor.
func NewExecutor(queue *Queue, trader repository.TradeExecutor, opts ...Option) *Executor {
	e := &Executor{
		queue:         queue,
		trader:        trader,
		policy:        DefaultRetryPolicy(),
		timeouts:      DefaultStageTimeouts(),
		maxConcurrent: 3,
		retryT:        make(map[string]pendingRetry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpdateSettings applies a new retry policy and stage timeouts at runtime.
// In-flight orders pick them up at their next stage or retry decision. The
// worker pool size is fixed once Start has run.
func (e *Executor) UpdateSettings(policy RetryPolicy, timeouts StageTimeouts) {
	e.mu.Lock()
	e.policy = policy
	e.timeouts = timeouts
	e.mu.Unlock()
}

func (e *Executor) currentPolicy() RetryPolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

func (e *Executor) currentTimeouts() StageTimeouts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeouts
}

// Start launches the worker pool.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	for i := 0; i < e.maxConcurrent; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
}

// Submit enqueues a sized order for execution. Never blocks the producer.
func (e *Executor) Submit(o *models.Order) error {
	if o.Status == "" {
		o.Status = models.OrderPending
	}
	if err := e.queue.Enqueue(o); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecordQueueDepth(e.queue.Len())
	}
	return nil
}

func (e *Executor) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		o, ok := e.queue.Dequeue()
		if !ok {
			return
		}
		e.setInFlight(1)
		e.execute(ctx, o)
		e.setInFlight(-1)
		if e.metrics != nil {
			e.metrics.RecordQueueDepth(e.queue.Len())
		}
	}
}

// execute drives one order through the state machine. The ordering
// QUOTING→SIGNING→SUBMITTED→CONFIRMING is never skipped; the only loop
// back is RETRY→QUOTING.
func (e *Executor) execute(ctx context.Context, o *models.Order) {
	now := time.Now()
	if o.StartedAt.IsZero() {
		o.StartedAt = now
		e.recordWait(now.Sub(o.CreatedAt))
	}

	err := e.runStages(ctx, o)
	if err == nil {
		e.finish(o, models.OrderSuccess, "")
		return
	}

	o.LastError = err.Error()
	policy := e.currentPolicy()
	if policy.Exhausted(o.RetryCount) {
		e.finish(o, models.OrderFailed, fmt.Sprintf("%v: %v", models.ErrRetryExhausted, err))
		if e.alerts != nil {
			_ = e.alerts.Alert(ctx, "critical", "order retries exhausted", o)
		}
		return
	}

	o.RetryCount++
	e.transition(o, models.OrderRetry, err.Error())
	e.bumpRetried()
	delay := policy.Delay(o.RetryCount)
	if e.log != nil {
		e.log.Warn("order retry scheduled",
			logger.String("order_id", o.ID),
			logger.Int("attempt", o.RetryCount),
			logger.String("delay", delay.String()),
		)
	}
	e.scheduleRetry(o, delay)
}

// runStages performs one full attempt.
func (e *Executor) runStages(ctx context.Context, o *models.Order) error {
	timeouts := e.currentTimeouts()

	// QUOTING
	e.transition(o, models.OrderQuoting, "")
	if q, ok := e.trader.(Quoter); ok {
		qctx, cancel := context.WithTimeout(ctx, timeouts.Quote)
		price, err := q.Quote(qctx, o.Token, o.AmountSOL)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: quote: %v", models.ErrExecutionFailure, err)
		}
		o.ExpectedPrice = price
	}

	// SIGNING
	e.transition(o, models.OrderSigning, "")
	if s, ok := e.trader.(Signer); ok {
		sctx, cancel := context.WithTimeout(ctx, timeouts.Sign)
		err := s.Sign(sctx, o.Token, o.AmountSOL)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: sign: %v", models.ErrExecutionFailure, err)
		}
	}

	// SUBMITTED then CONFIRMING span the swap call.
	e.transition(o, models.OrderSubmitted, "")
	ectx, cancel := context.WithTimeout(ctx, timeouts.Submit+timeouts.Confirm)
	defer cancel()

	e.transition(o, models.OrderConfirming, "")
	var fill models.Fill
	var err error
	start := time.Now()
	if o.Side == models.DirectionSell {
		fill, err = e.trader.ExecuteSell(ectx, o.Token, o.AmountSOL, o.SlippageBps)
	} else {
		fill, err = e.trader.ExecuteBuy(ectx, o.Token, o.AmountSOL, o.SlippageBps)
	}
	e.recordExec(time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrExecutionFailure, err)
	}
	o.ExpectedPrice = fill.FillPrice
	o.FilledSOL = fill.AmountSOL
	o.TxSignature = fill.TxSignature
	return nil
}

// scheduleRetry re-enqueues the order after the backoff delay.
func (e *Executor) scheduleRetry(o *models.Order, delay time.Duration) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		e.finish(o, models.OrderCancelled, "shutdown during retry backoff")
		return
	}
	t := time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.retryT, o.ID)
		e.mu.Unlock()
		if err := e.queue.Enqueue(o); err != nil {
			e.finish(o, models.OrderCancelled, "queue closed during retry")
		}
	})
	e.retryT[o.ID] = pendingRetry{order: o, timer: t}
	e.mu.Unlock()
}

// finish applies a terminal status and reports the outcome.
func (e *Executor) finish(o *models.Order, status models.OrderStatus, note string) {
	e.transition(o, status, note)
	o.FinishedAt = time.Now()

	e.mu.Lock()
	switch status {
	case models.OrderSuccess:
		e.stats.succeeded++
	case models.OrderFailed:
		e.stats.failed++
	case models.OrderCancelled:
		e.stats.cancelled++
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordOrder(string(status))
	}
	if e.onOutcome != nil && status != models.OrderCancelled {
		e.onOutcome(models.TradeOutcome{
			OrderID:  o.ID,
			Win:      status == models.OrderSuccess,
			ClosedAt: o.FinishedAt,
		})
	}
}

// transition records a status change with history for audit.
func (e *Executor) transition(o *models.Order, to models.OrderStatus, note string) {
	change := models.StatusChange{From: o.Status, To: to, At: time.Now(), Note: note}
	o.Status = to
	o.History = append(o.History, change)
	if e.onOrder != nil {
		e.onOrder(o)
	}
}

// Shutdown stops intake, lets in-flight orders drain until the deadline,
// then force-cancels orders that never started. CONFIRMING orders are not
// interrupted mid-transaction.
func (e *Executor) Shutdown(drainDeadline time.Duration) {
	e.mu.Lock()
	e.draining = true
	var backedOff []*models.Order
	for id, pr := range e.retryT {
		if pr.timer.Stop() {
			backedOff = append(backedOff, pr.order)
		}
		delete(e.retryT, id)
	}
	e.mu.Unlock()

	// A stopped timer means the retry never re-enqueued; those orders get a
	// terminal status here. Timers that already fired are handled as
	// cancellations by the enqueue path once the queue closes.
	for _, o := range backedOff {
		e.finish(o, models.OrderCancelled, "shutdown during retry backoff")
	}

	e.queue.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainDeadline):
		if e.log != nil {
			e.log.Warn("drain deadline exceeded, cancelling pending orders")
		}
	}

	for _, o := range e.queue.DrainPending() {
		e.finish(o, models.OrderCancelled, "shutdown")
	}
}

// Stats returns a point-in-time view of the executor.
func (e *Executor) Stats() models.ExecStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := models.ExecStats{
		QueueDepth: e.queue.Len(),
		InFlight:   e.inFlight,
		Succeeded:  e.stats.succeeded,
		Failed:     e.stats.failed,
		Retried:    e.stats.retried,
		Cancelled:  e.stats.cancelled,
	}
	if e.stats.execCount > 0 {
		s.AvgExecMs = e.stats.execSumMs / float64(e.stats.execCount)
	}
	if e.stats.waitCount > 0 {
		s.AvgWaitMs = e.stats.waitSumMs / float64(e.stats.waitCount)
	}
	return s
}

func (e *Executor) setInFlight(delta int) {
	e.mu.Lock()
	e.inFlight += delta
	n := e.inFlight
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordInFlight(n)
	}
}

func (e *Executor) bumpRetried() {
	e.mu.Lock()
	e.stats.retried++
	e.mu.Unlock()
}

func (e *Executor) recordExec(d time.Duration) {
	e.mu.Lock()
	e.stats.execSumMs += float64(d.Milliseconds())
	e.stats.execCount++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordLatency("order_execute", d.Seconds())
	}
}

func (e *Executor) recordWait(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.mu.Lock()
	e.stats.waitSumMs += float64(d.Milliseconds())
	e.stats.waitCount++
	e.mu.Unlock()
}
