package dto

type LoginRequest struct {
	Email string `json:"email"`
}

type CreateEvaluationRequest struct {
	PayeeID string `json:"payee_id"`
	// PriceCents is optional; when set it must match the scout's listed
	// price. The server never trusts a client-side amount on its own.
	PriceCents int64 `json:"price_cents,omitempty"`
}

type GiftEvaluationRequest struct {
	PlayerID string `json:"player_id"`
}

type CancelEvaluationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type DenyEvaluationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type ProcessReferralPayoutRequest struct {
	AmountCents int64 `json:"amount_cents"`
}
