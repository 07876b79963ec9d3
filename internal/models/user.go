package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RolePlayer     = "player"
	RoleParent     = "parent"
	RoleScout      = "scout"
	RoleHighSchool = "high_school"
	RoleAdmin      = "admin"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FullName          *string   `json:"full_name,omitempty"`
	Role              string    `json:"role"`
	School            *string   `json:"school,omitempty"`
	PricePerEvalCents *int64    `json:"price_per_eval_cents,omitempty"` // scouts only
	PayoutAccountID   *string   `json:"-"`                              // connected payout account at the processor
	CreatedAt         time.Time `json:"created_at"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}
