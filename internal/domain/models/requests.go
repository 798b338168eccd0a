package models

// PauseRequest is the operator request to halt all trading.
type PauseRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=256"`
}

// ResumeRequest clears a manual pause. Reset optionally force-closes
// one breaker kind.
type ResumeRequest struct {
	Reset string `query:"reset" json:"reset,omitempty" validate:"omitempty,oneof=drawdown win_rate consecutive_loss"`
}

// OrdersRequest filters the recent-orders listing.
type OrdersRequest struct {
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
	Status string `query:"status" validate:"omitempty,oneof=PENDING QUOTING SIGNING SUBMITTED CONFIRMING RETRY SUCCESS FAILED CANCELLED"`
}
