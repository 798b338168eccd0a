package models

import "time"

// OrderStatus tracks the lifecycle of an order through the executor.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderQuoting    OrderStatus = "QUOTING"
	OrderSigning    OrderStatus = "SIGNING"
	OrderSubmitted  OrderStatus = "SUBMITTED"
	OrderConfirming OrderStatus = "CONFIRMING"
	OrderRetry      OrderStatus = "RETRY"
	OrderSuccess    OrderStatus = "SUCCESS"
	OrderFailed     OrderStatus = "FAILED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderSuccess, OrderFailed, OrderCancelled:
		return true
	default:
		return false
	}
}

// Priority levels for the order queue. Exits always outrank entries.
const (
	PriorityExit      = 100
	PriorityEntryBase = 10
)

// StatusChange is one entry in an order's audit history.
type StatusChange struct {
	From OrderStatus `json:"from"`
	To   OrderStatus `json:"to"`
	At   time.Time   `json:"at"`
	Note string      `json:"note,omitempty"`
}

// Order is a sized trade waiting for or undergoing execution.
// Mutated only by the executor once enqueued.
type Order struct {
	ID            string         `json:"id"`
	TxSignature   string         `json:"tx_signature"`
	Side          TradeDirection `json:"side"`
	Token         string         `json:"token"`
	AmountSOL     float64        `json:"amount_sol"`
	FilledSOL     float64        `json:"filled_sol,omitempty"`
	ExpectedPrice float64        `json:"expected_price"`
	SlippageBps   int            `json:"slippage_bps"`
	Status        OrderStatus    `json:"status"`
	RetryCount    int            `json:"retry_count"`
	Priority      int            `json:"priority"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     time.Time      `json:"started_at,omitempty"`
	FinishedAt    time.Time      `json:"finished_at,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	History       []StatusChange `json:"history,omitempty"`
}

// DecisionRecord is the flattened audit row for one processed signal.
type DecisionRecord struct {
	TxSignature  string         `json:"tx_signature"`
	Wallet       string         `json:"wallet"`
	Token        string         `json:"token"`
	Direction    TradeDirection `json:"direction"`
	FilterStatus FilterStatus   `json:"filter_status"`
	FinalScore   float64        `json:"final_score"`
	Threshold    float64        `json:"threshold"`
	Passed       bool           `json:"passed"`
	Outcome      SizingOutcome  `json:"outcome"`
	SizeSOL      float64        `json:"size_sol"`
	Reason       string         `json:"reason,omitempty"`
	DecidedAt    time.Time      `json:"decided_at"`
}

// ExecStats is a point-in-time view of the executor, consumed by
// monitoring and the consecutive-loss breaker.
type ExecStats struct {
	QueueDepth int     `json:"queue_depth"`
	InFlight   int     `json:"in_flight"`
	Succeeded  int64   `json:"succeeded"`
	Failed     int64   `json:"failed"`
	Retried    int64   `json:"retried"`
	Cancelled  int64   `json:"cancelled"`
	AvgExecMs  float64 `json:"avg_exec_ms"`
	AvgWaitMs  float64 `json:"avg_wait_ms"`
}
