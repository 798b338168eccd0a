package models

import "time"

// BreakerKind identifies one of the independent risk circuit breakers.
type BreakerKind string

const (
	BreakerDrawdown        BreakerKind = "drawdown"
	BreakerWinRate         BreakerKind = "win_rate"
	BreakerConsecutiveLoss BreakerKind = "consecutive_loss"
)

// BreakerStatus is the 3-state machine position of a breaker.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "CLOSED"
	BreakerOpen     BreakerStatus = "OPEN"
	BreakerHalfOpen BreakerStatus = "HALF_OPEN"
)

// BreakerState is the externally visible state of one breaker.
type BreakerState struct {
	Kind          BreakerKind   `json:"kind"`
	Status        BreakerStatus `json:"status"`
	FailureMetric float64       `json:"failure_metric"`
	OpenedAt      time.Time     `json:"opened_at,omitempty"`
	Cooldown      time.Duration `json:"cooldown_seconds"`
}

// BreakerEvent records one breaker transition for alerting and audit.
type BreakerEvent struct {
	Kind   BreakerKind   `json:"kind"`
	From   BreakerStatus `json:"from"`
	To     BreakerStatus `json:"to"`
	Metric float64       `json:"metric"`
	Reason string        `json:"reason"`
	At     time.Time     `json:"at"`
}

// RiskSnapshot is a single consistent view of the breaker bank taken
// under one lock acquisition. Sizing decisions read exactly one snapshot.
type RiskSnapshot struct {
	CanTrade        bool           `json:"can_trade"`
	Paused          bool           `json:"paused"`
	PauseReason     string         `json:"pause_reason,omitempty"`
	ReductionFactor float64        `json:"reduction_factor"`
	Breakers        []BreakerState `json:"breakers"`
}
