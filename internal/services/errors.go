package services

import "errors"

// Error kinds the HTTP layer maps to status codes. Services wrap these with
// fmt.Errorf("%w: ...") so handlers can match with errors.Is while messages
// stay specific.
var (
	// ErrForbidden means the acting user is not allowed to perform the
	// operation on this entity.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means the request is well-formed but violates a business
	// rule (bad price, wrong role, duplicate request, unpaid acceptance).
	ErrValidation = errors.New("validation failed")
)
