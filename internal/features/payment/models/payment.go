package models

import "time"

// Status is the persisted payment status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"

	// StatusUnknown records a gateway status the core does not recognize.
	// Such rows leave the pending scan but stay visible to operators.
	StatusUnknown Status = "unknown"
)

// StatusFromGateway maps a raw gateway status string onto the persisted
// enum. Anything outside the known set becomes StatusUnknown rather than
// being dropped or mistaken for pending.
func StatusFromGateway(raw string) Status {
	switch raw {
	case "pending":
		return StatusPending
	case "succeeded":
		return StatusSucceeded
	case "canceled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the status ends the reconciliation lifecycle.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Payment is one gateway payment request owned by a user. Amount and
// currency are fixed at creation time; only Status changes afterwards, and
// only through the reconciler's conditional transition.
type Payment struct {
	Ref       string    `json:"payment_ref"`
	OwnerID   int64     `json:"owner_user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
