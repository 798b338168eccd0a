package sizing

import (
	"math"
	"testing"

	"ChainPilot/internal/domain/models"
)

func buySignal() models.ScoredSignal {
	return models.ScoredSignal{Direction: models.DirectionBuy, FinalScore: 0.9, ClusterBoost: 1.2}
}

func openRisk() models.RiskSnapshot {
	return models.RiskSnapshot{CanTrade: true, ReductionFactor: 1.0}
}

func TestBlockedRiskComesFirst(t *testing.T) {
	s := NewSizer(DefaultConfig())
	// Capacity is also exhausted, risk must win the ordering.
	d := s.Decide(buySignal(), 1.2,
		models.PortfolioView{BalanceSOL: 0, OpenPositions: 99},
		models.RiskSnapshot{CanTrade: false, Paused: true, PauseReason: "ops"},
	)
	if d.Outcome != models.SizingBlockedRisk {
		t.Fatalf("expected BLOCKED_RISK, got %s", d.Outcome)
	}
	if d.ShouldTrade {
		t.Fatalf("blocked decision must not trade")
	}
}

func TestBlockedCapacityOnPositionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentPositions = 3
	s := NewSizer(cfg)
	d := s.Decide(buySignal(), 1.2,
		models.PortfolioView{BalanceSOL: 100, OpenPositions: 3},
		openRisk(),
	)
	if d.Outcome != models.SizingBlockedCapacity {
		t.Fatalf("expected BLOCKED_CAPACITY, got %s", d.Outcome)
	}
}

func TestBlockedCapacityOnAllocation(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSizer(cfg)
	// Allocatable = 99, cap = 49.5, already allocated 49.45 leaves < min.
	d := s.Decide(buySignal(), 1.0,
		models.PortfolioView{BalanceSOL: 100, OpenPositions: 1, AllocatedSOL: 49.45},
		openRisk(),
	)
	if d.Outcome != models.SizingBlockedCapacity {
		t.Fatalf("expected BLOCKED_CAPACITY, got %s", d.Outcome)
	}
}

func TestSizeFormulaAndClamp(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSizer(cfg)

	// base 0.05 × allocatable 99 × mult 1.2 × reduction 1.0 = 5.94 → capped at max 5.0.
	d := s.Decide(buySignal(), 1.2, models.PortfolioView{BalanceSOL: 100}, openRisk())
	if d.Outcome != models.SizingTrade || !d.ShouldTrade {
		t.Fatalf("expected TRADE, got %+v", d)
	}
	if math.Abs(d.FinalSizeSOL-5.0) > 1e-9 {
		t.Fatalf("expected max clamp 5.0, got %v", d.FinalSizeSOL)
	}

	// Tiny balance clamps up to the minimum.
	d = s.Decide(buySignal(), 1.0, models.PortfolioView{BalanceSOL: 2}, openRisk())
	if math.Abs(d.FinalSizeSOL-cfg.MinPositionSOL) > 1e-9 {
		t.Fatalf("expected min clamp %v, got %v", cfg.MinPositionSOL, d.FinalSizeSOL)
	}
}

func TestReductionFactorApplied(t *testing.T) {
	s := NewSizer(DefaultConfig())
	full := s.Decide(buySignal(), 1.0, models.PortfolioView{BalanceSOL: 41}, openRisk())
	reduced := s.Decide(buySignal(), 1.0, models.PortfolioView{BalanceSOL: 41},
		models.RiskSnapshot{CanTrade: true, ReductionFactor: 0.5})
	// 0.05 × 40 = 2.0 full, 1.0 reduced.
	if math.Abs(full.FinalSizeSOL-2.0) > 1e-9 || math.Abs(reduced.FinalSizeSOL-1.0) > 1e-9 {
		t.Fatalf("expected 2.0/1.0, got %v/%v", full.FinalSizeSOL, reduced.FinalSizeSOL)
	}
}

func TestCappedByRemainingAllocation(t *testing.T) {
	s := NewSizer(DefaultConfig())
	// Remaining under the cap: 0.5×99 − 48 = 1.5; computed size would be 4.95.
	d := s.Decide(buySignal(), 1.0,
		models.PortfolioView{BalanceSOL: 100, AllocatedSOL: 48},
		openRisk(),
	)
	if math.Abs(d.FinalSizeSOL-1.5) > 1e-9 {
		t.Fatalf("expected allocation cap 1.5, got %v", d.FinalSizeSOL)
	}
}

func TestExitBypassesCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentPositions = 1
	s := NewSizer(cfg)
	sig := models.ScoredSignal{Direction: models.DirectionSell, FinalScore: 0.9, ClusterBoost: 1.0}
	d := s.Decide(sig, 1.0,
		models.PortfolioView{BalanceSOL: 100, OpenPositions: 5, AllocatedSOL: 49},
		openRisk(),
	)
	if d.Outcome != models.SizingTrade {
		t.Fatalf("exit must bypass capacity checks, got %s", d.Outcome)
	}
}
