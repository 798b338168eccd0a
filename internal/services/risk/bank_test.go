package risk

import (
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBank(cfg Config, events *[]models.BreakerEvent) (*Bank, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts := []BankOption{WithClock(clk.now)}
	if events != nil {
		opts = append(opts, WithEventFunc(func(ev models.BreakerEvent) {
			*events = append(*events, ev)
		}))
	}
	return NewBank(cfg, opts...), clk
}

func loss() models.TradeOutcome { return models.TradeOutcome{Win: false} }
func win() models.TradeOutcome  { return models.TradeOutcome{Win: true} }

func findState(t *testing.T, snap models.RiskSnapshot, kind models.BreakerKind) models.BreakerState {
	t.Helper()
	for _, s := range snap.Breakers {
		if s.Kind == kind {
			return s
		}
	}
	t.Fatalf("breaker %s not in snapshot", kind)
	return models.BreakerState{}
}

func TestConsecutiveLossTiers(t *testing.T) {
	bank, _ := newTestBank(DefaultConfig(), nil)

	// Two losses: full size, trading allowed.
	bank.RecordOutcome(loss())
	bank.RecordOutcome(loss())
	snap := bank.Snapshot()
	if !snap.CanTrade || snap.ReductionFactor != 1.0 {
		t.Fatalf("unexpected snapshot after 2 losses: %+v", snap)
	}

	// Third loss: warn tier reduces size without opening.
	bank.RecordOutcome(loss())
	snap = bank.Snapshot()
	if !snap.CanTrade {
		t.Fatalf("warn tier must not block trading")
	}
	if snap.ReductionFactor != 0.5 {
		t.Fatalf("expected 0.5 reduction, got %v", snap.ReductionFactor)
	}

	// Fifth loss: critical tier opens the breaker (Scenario C).
	bank.RecordOutcome(loss())
	bank.RecordOutcome(loss())
	snap = bank.Snapshot()
	if snap.CanTrade {
		t.Fatalf("expected trading blocked after 5 consecutive losses")
	}
	if st := findState(t, snap, models.BreakerConsecutiveLoss); st.Status != models.BreakerOpen {
		t.Fatalf("expected OPEN, got %s", st.Status)
	}

	// Blocked until manual resume with reset.
	bank.Resume(models.BreakerConsecutiveLoss)
	snap = bank.Snapshot()
	if !snap.CanTrade {
		t.Fatalf("expected trading after manual reset")
	}
}

func TestWinRateBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WinRateMinSamples = 10
	bank, _ := newTestBank(cfg, nil)

	// 9 outcomes below the minimum sample count never trip it.
	for i := 0; i < 9; i++ {
		bank.RecordOutcome(loss())
	}
	// Keep the consecutive-loss breaker out of the way.
	bank.Resume(models.BreakerConsecutiveLoss)
	if st := findState(t, bank.Snapshot(), models.BreakerWinRate); st.Status != models.BreakerClosed {
		t.Fatalf("win-rate tripped before min samples: %s", st.Status)
	}

	bank.RecordOutcome(loss())
	if st := findState(t, bank.Snapshot(), models.BreakerWinRate); st.Status != models.BreakerOpen {
		t.Fatalf("expected win-rate OPEN at 0%% over 10 samples, got %s", st.Status)
	}
}

func TestDrawdownBreaker(t *testing.T) {
	bank, _ := newTestBank(DefaultConfig(), nil)

	bank.RecordOutcome(models.TradeOutcome{Win: true, DrawdownPct: 12})
	if st := findState(t, bank.Snapshot(), models.BreakerDrawdown); st.Status != models.BreakerClosed {
		t.Fatalf("expected CLOSED at 12%% drawdown")
	}

	bank.RecordOutcome(models.TradeOutcome{Win: true, DrawdownPct: 25})
	snap := bank.Snapshot()
	if snap.CanTrade {
		t.Fatalf("expected trading blocked at 25%% drawdown")
	}
}

func TestUpdateConfigAppliesWithoutRestart(t *testing.T) {
	bank, _ := newTestBank(DefaultConfig(), nil)

	// 12% sits under the default 20% threshold.
	bank.RecordOutcome(models.TradeOutcome{Win: true, DrawdownPct: 12})
	if st := findState(t, bank.Snapshot(), models.BreakerDrawdown); st.Status != models.BreakerClosed {
		t.Fatalf("expected CLOSED at 12%% drawdown under default limits")
	}

	cfg := DefaultConfig()
	cfg.DrawdownThresholdPct = 10
	bank.UpdateConfig(cfg)

	bank.RecordOutcome(models.TradeOutcome{Win: true, DrawdownPct: 12})
	if st := findState(t, bank.Snapshot(), models.BreakerDrawdown); st.Status != models.BreakerOpen {
		t.Fatalf("expected OPEN at 12%% drawdown after lowering the threshold, got %s", st.Status)
	}
}

func TestUpdateConfigRebuildsWinRateWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WinRateWindowSize = 4
	cfg.WinRateMinSamples = 4
	bank, _ := newTestBank(cfg, nil)

	for i := 0; i < 3; i++ {
		bank.RecordOutcome(loss())
	}

	// A changed window size starts sampling from scratch.
	cfg.WinRateWindowSize = 8
	bank.UpdateConfig(cfg)
	bank.RecordOutcome(loss())
	if st := findState(t, bank.Snapshot(), models.BreakerWinRate); st.Status != models.BreakerClosed {
		t.Fatalf("one sample after a window rebuild must not open the breaker, got %s", st.Status)
	}
}

func TestBreakerLifecycleHalfOpenProbe(t *testing.T) {
	var events []models.BreakerEvent
	cfg := DefaultConfig()
	bank, clk := newTestBank(cfg, &events)

	// Trip the consecutive-loss breaker.
	for i := 0; i < cfg.ConsecutiveLossCritical; i++ {
		bank.RecordOutcome(loss())
	}
	if snap := bank.Admit(); snap.CanTrade {
		t.Fatalf("expected blocked while OPEN")
	}

	// Cooldown elapses: exactly one probe is admitted.
	clk.advance(cfg.ConsecutiveLossCooldown + time.Second)
	first := bank.Admit()
	if !first.CanTrade {
		t.Fatalf("expected half-open probe admitted")
	}
	if st := findState(t, first, models.BreakerConsecutiveLoss); st.Status != models.BreakerHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", st.Status)
	}
	second := bank.Admit()
	if second.CanTrade {
		t.Fatalf("expected second caller refused while probe in flight")
	}

	// Probe success closes the breaker and resets the loss streak.
	bank.RecordOutcome(win())
	snap := bank.Admit()
	if !snap.CanTrade {
		t.Fatalf("expected trading after probe success")
	}
	if st := findState(t, snap, models.BreakerConsecutiveLoss); st.Status != models.BreakerClosed {
		t.Fatalf("expected CLOSED after probe success, got %s", st.Status)
	}
}

func TestProbeFailureReopensWithFreshCooldown(t *testing.T) {
	cfg := DefaultConfig()
	bank, clk := newTestBank(cfg, nil)

	for i := 0; i < cfg.ConsecutiveLossCritical; i++ {
		bank.RecordOutcome(loss())
	}
	clk.advance(cfg.ConsecutiveLossCooldown + time.Second)
	if snap := bank.Admit(); !snap.CanTrade {
		t.Fatalf("expected probe admitted")
	}

	bank.RecordOutcome(loss())
	snap := bank.Snapshot()
	if snap.CanTrade {
		t.Fatalf("expected reopened after probe failure")
	}
	st := findState(t, snap, models.BreakerConsecutiveLoss)
	if st.Status != models.BreakerOpen {
		t.Fatalf("expected OPEN, got %s", st.Status)
	}

	// Fresh cooldown: not half-open until another full cooldown elapses.
	clk.advance(cfg.ConsecutiveLossCooldown / 2)
	if snap := bank.Admit(); snap.CanTrade {
		t.Fatalf("expected still blocked mid-cooldown")
	}
	clk.advance(cfg.ConsecutiveLossCooldown)
	if snap := bank.Admit(); !snap.CanTrade {
		t.Fatalf("expected new probe after fresh cooldown")
	}
}

func TestManualPauseOverridesEverything(t *testing.T) {
	bank, _ := newTestBank(DefaultConfig(), nil)

	bank.Pause("ops maintenance")
	snap := bank.Admit()
	if snap.CanTrade {
		t.Fatalf("expected blocked while paused")
	}
	if !snap.Paused || snap.PauseReason != "ops maintenance" {
		t.Fatalf("unexpected pause state: %+v", snap)
	}

	bank.Resume("")
	if snap := bank.Admit(); !snap.CanTrade {
		t.Fatalf("expected trading after resume")
	}
}

func TestTransitionsEmitEvents(t *testing.T) {
	var events []models.BreakerEvent
	cfg := DefaultConfig()
	bank, clk := newTestBank(cfg, &events)

	for i := 0; i < cfg.ConsecutiveLossCritical; i++ {
		bank.RecordOutcome(loss())
	}
	clk.advance(cfg.ConsecutiveLossCooldown + time.Second)
	bank.Admit()
	bank.RecordOutcome(win())

	var seq []models.BreakerStatus
	for _, ev := range events {
		if ev.Kind == models.BreakerConsecutiveLoss {
			seq = append(seq, ev.To)
		}
	}
	want := []models.BreakerStatus{models.BreakerOpen, models.BreakerHalfOpen, models.BreakerClosed}
	if len(seq) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("transition %d: got %s want %s", i, seq[i], want[i])
		}
	}
}
