package risk

import (
	"time"

	"ChainPilot/internal/domain/models"
)

// breaker is one 3-state machine. All mutation happens under the bank's
// lock; a breaker never locks on its own.
type breaker struct {
	kind     models.BreakerKind
	status   models.BreakerStatus
	metric   float64
	openedAt time.Time
	cooldown time.Duration

	// probePending is set while the single HALF_OPEN probe is in flight.
	probePending bool
}

func newBreaker(kind models.BreakerKind, cooldown time.Duration) *breaker {
	return &breaker{
		kind:     kind,
		status:   models.BreakerClosed,
		cooldown: cooldown,
	}
}

// maybeHalfOpen transitions OPEN -> HALF_OPEN once the cooldown elapses.
// Returns the transition event, if any.
func (b *breaker) maybeHalfOpen(now time.Time) *models.BreakerEvent {
	if b.status != models.BreakerOpen {
		return nil
	}
	if now.Sub(b.openedAt) < b.cooldown {
		return nil
	}
	ev := b.transition(models.BreakerHalfOpen, "cooldown elapsed", now)
	b.probePending = false
	return ev
}

// open trips the breaker and starts a fresh cooldown.
func (b *breaker) open(reason string, now time.Time) *models.BreakerEvent {
	if b.status == models.BreakerOpen {
		return nil
	}
	ev := b.transition(models.BreakerOpen, reason, now)
	b.openedAt = now
	b.probePending = false
	return ev
}

// close resets the breaker to CLOSED.
func (b *breaker) close(reason string, now time.Time) *models.BreakerEvent {
	if b.status == models.BreakerClosed {
		return nil
	}
	ev := b.transition(models.BreakerClosed, reason, now)
	b.probePending = false
	return ev
}

func (b *breaker) transition(to models.BreakerStatus, reason string, now time.Time) *models.BreakerEvent {
	ev := &models.BreakerEvent{
		Kind:   b.kind,
		From:   b.status,
		To:     to,
		Metric: b.metric,
		Reason: reason,
		At:     now,
	}
	b.status = to
	return ev
}

func (b *breaker) state() models.BreakerState {
	return models.BreakerState{
		Kind:          b.kind,
		Status:        b.status,
		FailureMetric: b.metric,
		OpenedAt:      b.openedAt,
		Cooldown:      b.cooldown,
	}
}
