package models

import "time"

// TradeDirection is the side of the observed wallet activity.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// Signal is a raw wallet-activity event from the on-chain monitor.
type Signal struct {
	TxSignature string         `json:"tx_signature" validate:"required"`
	Wallet      string         `json:"wallet" validate:"required,min=32"`
	Token       string         `json:"token" validate:"required,min=32"`
	Direction   TradeDirection `json:"direction" validate:"required,oneof=buy sell"`
	TokenAmount float64        `json:"token_amount" validate:"gte=0"`
	SolAmount   float64        `json:"sol_amount" validate:"gte=0"`
	Timestamp   time.Time      `json:"timestamp" validate:"required"`
	ReceivedAt  time.Time      `json:"received_at"`
}

// FilterStatus is the outcome of the reputation/blacklist gate.
type FilterStatus string

const (
	FilterPassed       FilterStatus = "PASSED"
	FilterNotMonitored FilterStatus = "DISCARDED_NOT_MONITORED"
	FilterBlacklisted  FilterStatus = "BLOCKED_BLACKLISTED"
	FilterError        FilterStatus = "ERROR"
)

// ReputationEntry is the cached monitoring/blacklist/reputation state of a wallet.
type ReputationEntry struct {
	Address         string        `json:"address"`
	IsMonitored     bool          `json:"is_monitored"`
	IsBlacklisted   bool          `json:"is_blacklisted"`
	ReputationScore float64       `json:"reputation_score"` // [0,1]
	CachedAt        time.Time     `json:"cached_at"`
	TTL             time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *ReputationEntry) Expired(now time.Time) bool {
	return now.After(e.CachedAt.Add(e.TTL))
}

// ClusterInfo is what the cluster service knows about a wallet.
type ClusterInfo struct {
	ClusterID           string  `json:"cluster_id"`
	IsLeader            bool    `json:"is_leader"`
	AmplificationFactor float64 `json:"amplification_factor"` // >= 1
}

// TokenSafetyResult is the binary safety gate verdict for a token.
type TokenSafetyResult struct {
	Safe         bool   `json:"safe"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// ScoredSignal is the immutable scoring result for one signal.
type ScoredSignal struct {
	TxSignature  string         `json:"tx_signature"`
	Wallet       string         `json:"wallet"`
	Token        string         `json:"token"`
	Direction    TradeDirection `json:"direction"`
	FinalScore   float64        `json:"final_score"`   // [0,1]
	WalletScore  float64        `json:"wallet_score"`  // [0,1]
	ClusterBoost float64        `json:"cluster_boost"` // >= 1
	IsLeader     bool           `json:"is_leader"`
	TokenSafe    bool           `json:"token_safe"`
	Reason       string         `json:"reason,omitempty"`
	ScoredAt     time.Time      `json:"scored_at"`
}

// ThresholdResult is the deterministic threshold verdict for a scored signal.
type ThresholdResult struct {
	Passed             bool    `json:"passed"`
	Score              float64 `json:"score"`
	Threshold          float64 `json:"threshold"`
	PositionMultiplier float64 `json:"position_multiplier"`
}

// SizingOutcome classifies the position sizer's decision.
type SizingOutcome string

const (
	SizingTrade           SizingOutcome = "TRADE"
	SizingSkip            SizingOutcome = "SKIP"
	SizingBlockedRisk     SizingOutcome = "BLOCKED_RISK"
	SizingBlockedCapacity SizingOutcome = "BLOCKED_CAPACITY"
)

// SizingDecision is the concrete order-size decision for a passed signal.
type SizingDecision struct {
	ShouldTrade  bool          `json:"should_trade"`
	Outcome      SizingOutcome `json:"outcome"`
	FinalSizeSOL float64       `json:"final_size_sol"`
	Multiplier   float64       `json:"multiplier"`
	Reason       string        `json:"reason,omitempty"`
}

// PortfolioView is the capital/position snapshot the sizer works against.
type PortfolioView struct {
	BalanceSOL    float64 `json:"balance_sol"`
	OpenPositions int     `json:"open_positions"`
	AllocatedSOL  float64 `json:"allocated_sol"`
}

// TradeOutcome is the realized result of one executed order, fed back
// into the circuit breakers.
type TradeOutcome struct {
	OrderID     string    `json:"order_id"`
	Win         bool      `json:"win"`
	PnLSOL      float64   `json:"pnl_sol"`
	DrawdownPct float64   `json:"drawdown_pct"`
	ClosedAt    time.Time `json:"closed_at"`
}

// Fill is the outcome of a single swap execution attempt.
type Fill struct {
	TxSignature string    `json:"tx_signature"`
	Token       string    `json:"token"`
	AmountSOL   float64   `json:"amount_sol"`
	FillPrice   float64   `json:"fill_price"`
	FilledAt    time.Time `json:"filled_at"`
}
