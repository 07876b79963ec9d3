package models

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation statuses
const (
	EvalStatusRequested  = "requested"
	EvalStatusConfirmed  = "confirmed"
	EvalStatusDenied     = "denied"
	EvalStatusCancelled  = "cancelled"
	EvalStatusInProgress = "in_progress"
	EvalStatusCompleted  = "completed"
)

// Payment statuses
const (
	PaymentNotRequired = "not_required"
	PaymentPending     = "pending"
	PaymentPaid        = "paid"
	PaymentRefunded    = "refunded"
)

// Valid state transitions: from -> []to.
// Cancellation and denial are only reachable from requested: once a scout
// has confirmed, the only way forward is completion, so a payout already in
// flight can never be clawed back.
var ValidEvalTransitions = map[string][]string{
	EvalStatusRequested:  {EvalStatusConfirmed, EvalStatusDenied, EvalStatusCancelled},
	EvalStatusConfirmed:  {EvalStatusCompleted},
	EvalStatusInProgress: {EvalStatusCompleted},
	EvalStatusDenied:     {},
	EvalStatusCancelled:  {},
	EvalStatusCompleted:  {},
}

func IsValidEvalTransition(from, to string) bool {
	allowed, ok := ValidEvalTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalEvalStatus(status string) bool {
	allowed, ok := ValidEvalTransitions[status]
	return ok && len(allowed) == 0
}

// Evaluation is a single scouting-review engagement between a requester
// (player or parent) and a payee (scout). Money amounts are integer cents.
type Evaluation struct {
	ID               uuid.UUID  `json:"id"`
	RequesterID      uuid.UUID  `json:"requester_id"`
	PayeeID          uuid.UUID  `json:"payee_id"`
	Status           string     `json:"status"`
	PriceCents       int64      `json:"price_cents"`
	PaymentStatus    string     `json:"payment_status"`
	PaymentRef       *string    `json:"payment_reference,omitempty"`
	PlatformFeeCents int64      `json:"platform_fee_cents"`
	PayeePayoutCents int64      `json:"payee_payout_cents"`
	TransferRef      *string    `json:"transfer_reference,omitempty"`
	CancelledReason  *string    `json:"cancelled_reason,omitempty"`
	DeniedReason     *string    `json:"denied_reason,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	DeniedAt         *time.Time `json:"denied_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Paid reports whether money has been captured and is still held.
func (e *Evaluation) Paid() bool {
	return e.PaymentStatus == PaymentPaid && e.PaymentRef != nil
}

// Active statuses block a second request between the same two parties.
func IsActiveEvalStatus(status string) bool {
	switch status {
	case EvalStatusRequested, EvalStatusConfirmed, EvalStatusInProgress:
		return true
	}
	return false
}
