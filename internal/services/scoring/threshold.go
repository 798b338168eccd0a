package scoring

import "ChainPilot/internal/domain/models"

// DefaultTradeThreshold is the minimum score that produces an order.
const DefaultTradeThreshold = 0.65

// NoTradeMultiplier is the sentinel carried on a failed threshold result.
// It exists for audit rows only: a failed check produces no order at all,
// never an order with zero size.
const NoTradeMultiplier = 0.0

// ThresholdChecker compares a scored signal to the configured threshold
// and derives the position multiplier.
type ThresholdChecker struct {
	threshold float64
}

// NewThresholdChecker creates a checker with the given trade threshold.
func NewThresholdChecker(threshold float64) *ThresholdChecker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTradeThreshold
	}
	return &ThresholdChecker{threshold: threshold}
}

// Check derives the threshold verdict. Passed requires a safe token and a
// final score at or above the threshold; the multiplier is the cluster
// boost when passed.
func (t *ThresholdChecker) Check(s models.ScoredSignal) models.ThresholdResult {
	r := models.ThresholdResult{
		Score:     s.FinalScore,
		Threshold: t.threshold,
	}
	if s.TokenSafe && s.FinalScore >= t.threshold {
		r.Passed = true
		r.PositionMultiplier = s.ClusterBoost
	} else {
		r.PositionMultiplier = NoTradeMultiplier
	}
	return r
}
