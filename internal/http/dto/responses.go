package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// EvaluationCreatedResponse carries the new evaluation plus the hosted
// checkout the requester must complete.
type EvaluationCreatedResponse struct {
	Evaluation  any    `json:"evaluation"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}
