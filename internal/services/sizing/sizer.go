package sizing

import (
	"fmt"

	"ChainPilot/internal/domain/models"
)

// Config bounds position sizes and capital allocation.
type Config struct {
	BasePositionPct         float64
	MinPositionSOL          float64
	MaxPositionSOL          float64
	MaxConcurrentPositions  int
	MaxCapitalAllocationPct float64
	ReserveSOL              float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BasePositionPct:         0.05,
		MinPositionSOL:          0.1,
		MaxPositionSOL:          5.0,
		MaxConcurrentPositions:  5,
		MaxCapitalAllocationPct: 0.5,
		ReserveSOL:              1.0,
	}
}

// Sizer converts a passed signal into a concrete order size bounded by
// capital and concurrency limits.
type Sizer struct {
	cfg Config
}

// NewSizer creates a position sizer.
func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Decide computes the sizing decision for an entry. Checks run in a fixed
// order: risk gate, capacity, then size computation. The risk snapshot is
// taken once by the caller and never re-read mid-evaluation.
func (s *Sizer) Decide(sig models.ScoredSignal, multiplier float64, portfolio models.PortfolioView, risk models.RiskSnapshot) models.SizingDecision {
	if !risk.CanTrade {
		reason := "circuit breaker open"
		if risk.Paused {
			reason = "trading paused: " + risk.PauseReason
		}
		return models.SizingDecision{
			Outcome:    models.SizingBlockedRisk,
			Multiplier: multiplier,
			Reason:     reason,
		}
	}

	// Exits release capital; only entries consume capacity.
	if sig.Direction == models.DirectionBuy {
		if portfolio.OpenPositions >= s.cfg.MaxConcurrentPositions {
			return models.SizingDecision{
				Outcome:    models.SizingBlockedCapacity,
				Multiplier: multiplier,
				Reason:     fmt.Sprintf("open positions at limit (%d)", s.cfg.MaxConcurrentPositions),
			}
		}
		if s.remainingAllocatable(portfolio) < s.cfg.MinPositionSOL {
			return models.SizingDecision{
				Outcome:    models.SizingBlockedCapacity,
				Multiplier: multiplier,
				Reason:     "remaining allocatable capital below minimum position",
			}
		}
	}

	allocatable := portfolio.BalanceSOL - s.cfg.ReserveSOL
	if allocatable <= 0 {
		return models.SizingDecision{
			Outcome:    models.SizingBlockedCapacity,
			Multiplier: multiplier,
			Reason:     "balance below reserve",
		}
	}

	size := s.cfg.BasePositionPct * allocatable * multiplier * risk.ReductionFactor
	if size < s.cfg.MinPositionSOL {
		size = s.cfg.MinPositionSOL
	}
	if size > s.cfg.MaxPositionSOL {
		size = s.cfg.MaxPositionSOL
	}
	if sig.Direction == models.DirectionBuy {
		if remaining := s.remainingAllocatable(portfolio); size > remaining {
			size = remaining
		}
	}

	return models.SizingDecision{
		ShouldTrade:  true,
		Outcome:      models.SizingTrade,
		FinalSizeSOL: size,
		Multiplier:   multiplier,
	}
}

// remainingAllocatable is the capital still available under the
// allocation cap, with the reserve always excluded.
func (s *Sizer) remainingAllocatable(p models.PortfolioView) float64 {
	allocatable := p.BalanceSOL - s.cfg.ReserveSOL
	if allocatable <= 0 {
		return 0
	}
	capSOL := allocatable * s.cfg.MaxCapitalAllocationPct
	remaining := capSOL - p.AllocatedSOL
	if remaining < 0 {
		return 0
	}
	return remaining
}
