package usecase

import (
	"context"

	"ChainPilot/internal/domain/models"
	drepo "ChainPilot/internal/domain/repository"
	"ChainPilot/internal/services/reputation"
)

// SignalFilter gates raw signals on wallet reputation state. Blacklist
// always wins over monitoring status.
type SignalFilter struct {
	cache   *reputation.Cache
	metrics drepo.Metrics
}

// NewSignalFilter creates a new SignalFilter instance.
func NewSignalFilter(cache *reputation.Cache, metrics drepo.Metrics) *SignalFilter {
	return &SignalFilter{cache: cache, metrics: metrics}
}

// Filter resolves the wallet's reputation entry and classifies the signal.
// A reputation lookup failure yields FilterError and the lookup error so the
// caller can decide what to do with the signal; the signal is never silently
// promoted to PASSED on failure.
func (f *SignalFilter) Filter(ctx context.Context, s *models.Signal) (models.FilterStatus, models.ReputationEntry, error) {
	entry, err := f.cache.Get(ctx, s.Wallet)
	if err != nil {
		f.metrics.RecordSignal(string(models.FilterError))
		return models.FilterError, models.ReputationEntry{}, err
	}

	status := models.FilterPassed
	switch {
	case entry.IsBlacklisted:
		status = models.FilterBlacklisted
	case !entry.IsMonitored:
		status = models.FilterNotMonitored
	}

	f.metrics.RecordSignal(string(status))
	return status, entry, nil
}
