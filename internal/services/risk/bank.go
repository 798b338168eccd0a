package risk

import (
	"sync"
	"time"

	"ChainPilot/internal/domain/models"
)

// Config defines the limits for all three breakers.
type Config struct {
	DrawdownThresholdPct    float64
	DrawdownCooldown        time.Duration
	WinRateWindowSize       int
	WinRateThresholdPct     float64
	WinRateMinSamples       int
	WinRateCooldown         time.Duration
	ConsecutiveLossWarn     int
	ConsecutiveLossCritical int
	ReductionFactor         float64
	ConsecutiveLossCooldown time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DrawdownThresholdPct:    20,
		DrawdownCooldown:        300 * time.Second,
		WinRateWindowSize:       50,
		WinRateThresholdPct:     40,
		WinRateMinSamples:       10,
		WinRateCooldown:         600 * time.Second,
		ConsecutiveLossWarn:     3,
		ConsecutiveLossCritical: 5,
		ReductionFactor:         0.5,
		ConsecutiveLossCooldown: 300 * time.Second,
	}
}

// EventFunc receives breaker transition events. Called outside the bank lock.
type EventFunc func(models.BreakerEvent)

// Bank holds the three independent risk breakers plus the manual pause
// switch. All trading passes through Admit; a manual pause overrides
// breaker state regardless of metric values.
type Bank struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	drawdown *breaker
	winRate  *breaker
	consLoss *breaker

	paused      bool
	pauseReason string

	window    []bool // rolling win/loss ring
	windowIdx int
	windowLen int

	consecutiveLosses int

	onEvent EventFunc
}

// BankOption configures the Bank.
type BankOption func(*Bank)

// WithEventFunc sets the transition event callback.
func WithEventFunc(fn EventFunc) BankOption {
	return func(b *Bank) { b.onEvent = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) BankOption {
	return func(b *Bank) { b.now = now }
}

// NewBank creates a breaker bank with all breakers CLOSED.
func NewBank(cfg Config, opts ...BankOption) *Bank {
	if cfg.WinRateWindowSize <= 0 {
		cfg.WinRateWindowSize = 50
	}
	if cfg.ReductionFactor <= 0 || cfg.ReductionFactor > 1 {
		cfg.ReductionFactor = 0.5
	}
	b := &Bank{
		cfg:      cfg,
		now:      time.Now,
		drawdown: newBreaker(models.BreakerDrawdown, cfg.DrawdownCooldown),
		winRate:  newBreaker(models.BreakerWinRate, cfg.WinRateCooldown),
		consLoss: newBreaker(models.BreakerConsecutiveLoss, cfg.ConsecutiveLossCooldown),
		window:   make([]bool, cfg.WinRateWindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bank) each() []*breaker {
	return []*breaker{b.drawdown, b.winRate, b.consLoss}
}

// UpdateConfig applies new limits at runtime. Thresholds and cooldowns take
// effect on the next outcome or admit; a changed window size rebuilds the
// win-rate ring empty, so the rate is re-established from fresh samples.
func (b *Bank) UpdateConfig(cfg Config) {
	if cfg.WinRateWindowSize <= 0 {
		cfg.WinRateWindowSize = 50
	}
	if cfg.ReductionFactor <= 0 || cfg.ReductionFactor > 1 {
		cfg.ReductionFactor = 0.5
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg.WinRateWindowSize != b.cfg.WinRateWindowSize {
		b.window = make([]bool, cfg.WinRateWindowSize)
		b.windowIdx = 0
		b.windowLen = 0
	}
	b.cfg = cfg
	b.drawdown.cooldown = cfg.DrawdownCooldown
	b.winRate.cooldown = cfg.WinRateCooldown
	b.consLoss.cooldown = cfg.ConsecutiveLossCooldown
}

// Admit decides whether a new trade may proceed and returns the consistent
// risk snapshot the sizing decision must use. When a breaker is HALF_OPEN,
// exactly one caller is admitted as the probe; others are refused until the
// probe resolves.
func (b *Bank) Admit() models.RiskSnapshot {
	b.mu.Lock()
	now := b.now()
	events := b.advanceCooldowns(now)

	snap := b.snapshotLocked()
	if snap.CanTrade {
		// Claim the probe slot on any half-open breaker.
		for _, br := range b.each() {
			if br.status == models.BreakerHalfOpen {
				br.probePending = true
			}
		}
	}
	b.mu.Unlock()

	b.emit(events)
	return snap
}

// Snapshot returns the current view without claiming a probe slot.
func (b *Bank) Snapshot() models.RiskSnapshot {
	b.mu.Lock()
	events := b.advanceCooldowns(b.now())
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.emit(events)
	return snap
}

// snapshotLocked builds the view. Caller holds mu.
func (b *Bank) snapshotLocked() models.RiskSnapshot {
	snap := models.RiskSnapshot{
		CanTrade:        !b.paused,
		Paused:          b.paused,
		PauseReason:     b.pauseReason,
		ReductionFactor: 1.0,
	}
	if b.consecutiveLosses >= b.cfg.ConsecutiveLossWarn {
		snap.ReductionFactor = b.cfg.ReductionFactor
	}
	for _, br := range b.each() {
		snap.Breakers = append(snap.Breakers, br.state())
		switch br.status {
		case models.BreakerOpen:
			snap.CanTrade = false
		case models.BreakerHalfOpen:
			if br.probePending {
				// Only one probe at a time.
				snap.CanTrade = false
			}
		}
	}
	return snap
}

func (b *Bank) advanceCooldowns(now time.Time) []models.BreakerEvent {
	var events []models.BreakerEvent
	for _, br := range b.each() {
		if ev := br.maybeHalfOpen(now); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

// RecordOutcome feeds one realized trade outcome into all breakers.
// If a half-open probe is in flight, this outcome resolves it.
func (b *Bank) RecordOutcome(out models.TradeOutcome) {
	b.mu.Lock()
	now := b.now()
	var events []models.BreakerEvent

	// Probe resolution takes priority over metric updates.
	for _, br := range b.each() {
		if br.status == models.BreakerHalfOpen && br.probePending {
			if out.Win {
				if ev := br.close("probe succeeded", now); ev != nil {
					events = append(events, *ev)
				}
				b.resetMetricLocked(br)
			} else {
				if ev := br.open("probe failed", now); ev != nil {
					events = append(events, *ev)
				}
			}
		}
	}

	// Rolling win-rate window.
	b.window[b.windowIdx] = out.Win
	b.windowIdx = (b.windowIdx + 1) % len(b.window)
	if b.windowLen < len(b.window) {
		b.windowLen++
	}
	wins := 0
	for i := 0; i < b.windowLen; i++ {
		if b.window[i] {
			wins++
		}
	}
	rate := 100 * float64(wins) / float64(b.windowLen)
	b.winRate.metric = rate
	if b.windowLen >= b.cfg.WinRateMinSamples &&
		rate < b.cfg.WinRateThresholdPct &&
		b.winRate.status == models.BreakerClosed {
		if ev := b.winRate.open("win rate below threshold", now); ev != nil {
			events = append(events, *ev)
		}
	}

	// Consecutive losses.
	if out.Win {
		b.consecutiveLosses = 0
	} else {
		b.consecutiveLosses++
	}
	b.consLoss.metric = float64(b.consecutiveLosses)
	if b.consecutiveLosses >= b.cfg.ConsecutiveLossCritical &&
		b.consLoss.status == models.BreakerClosed {
		if ev := b.consLoss.open("consecutive loss critical", now); ev != nil {
			events = append(events, *ev)
		}
	}

	// Drawdown.
	b.drawdown.metric = out.DrawdownPct
	if out.DrawdownPct > b.cfg.DrawdownThresholdPct &&
		b.drawdown.status == models.BreakerClosed {
		if ev := b.drawdown.open("drawdown exceeded", now); ev != nil {
			events = append(events, *ev)
		}
	}

	b.mu.Unlock()
	b.emit(events)
}

// resetMetricLocked clears the metric that tripped a breaker after a
// successful probe. Caller holds mu.
func (b *Bank) resetMetricLocked(br *breaker) {
	switch br.kind {
	case models.BreakerConsecutiveLoss:
		b.consecutiveLosses = 0
		br.metric = 0
	case models.BreakerWinRate:
		b.windowLen = 0
		b.windowIdx = 0
		br.metric = 0
	case models.BreakerDrawdown:
		br.metric = 0
	}
}

// ReleaseProbe returns an unused probe slot when the admitted trade never
// reached execution, so a later Admit can claim it.
func (b *Bank) ReleaseProbe() {
	b.mu.Lock()
	for _, br := range b.each() {
		if br.status == models.BreakerHalfOpen && br.probePending {
			br.probePending = false
		}
	}
	b.mu.Unlock()
}

// Pause halts all trading regardless of breaker state.
func (b *Bank) Pause(reason string) {
	b.mu.Lock()
	b.paused = true
	b.pauseReason = reason
	b.mu.Unlock()
}

// Resume clears the manual pause. Open breakers still hold until their own
// cooldown/probe cycle unless reset names a kind to force-close.
func (b *Bank) Resume(reset models.BreakerKind) {
	b.mu.Lock()
	now := b.now()
	b.paused = false
	b.pauseReason = ""
	var events []models.BreakerEvent
	if reset != "" {
		for _, br := range b.each() {
			if br.kind == reset {
				if ev := br.close("manual reset", now); ev != nil {
					events = append(events, *ev)
				}
				b.resetMetricLocked(br)
			}
		}
	}
	b.mu.Unlock()
	b.emit(events)
}

// Paused reports the manual pause state.
func (b *Bank) Paused() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused, b.pauseReason
}

func (b *Bank) emit(events []models.BreakerEvent) {
	if b.onEvent == nil {
		return
	}
	for _, ev := range events {
		b.onEvent(ev)
	}
}
