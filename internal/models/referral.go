package models

import (
	"time"

	"github.com/google/uuid"
)

// Referral payout statuses
const (
	ReferralPayoutUnpaid = "unpaid"
	ReferralPayoutPaid   = "paid"
)

// Referral records a referrer bonus. Its payout rides on the same transfer
// primitive as evaluation payouts, with the same once-only transfer guard.
type Referral struct {
	ID                uuid.UUID `json:"id"`
	ReferrerID        uuid.UUID `json:"referrer_id"`
	ReferredID        uuid.UUID `json:"referred_id"`
	PayoutAmountCents int64     `json:"payout_amount_cents"`
	PayoutStatus      string    `json:"payout_status"`
	TransferRef       *string   `json:"transfer_reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
