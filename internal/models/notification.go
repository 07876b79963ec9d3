package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotifEvaluationRequested = "evaluation_requested"
	NotifEvaluationConfirmed = "evaluation_confirmed"
	NotifEvaluationDenied    = "evaluation_denied"
	NotifEvaluationCancelled = "evaluation_cancelled"
	NotifEvaluationCompleted = "evaluation_completed"
	NotifPaymentReceived     = "payment_received"
	NotifPaymentFailed       = "payment_failed"
	NotifPaymentRefunded     = "payment_refunded"
	NotifPayoutSent          = "payout_sent"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	Meta      any        `json:"meta,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
