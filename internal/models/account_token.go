package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose distinguishes one-time account tokens
type TokenPurpose string

const (
	// TokenPurposePasswordReset authorizes a single password change
	TokenPurposePasswordReset TokenPurpose = "password_reset"
	// TokenPurposeEmailVerification confirms ownership of the account e-mail
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
)

// AccountToken is a hashed single-use token bound to a user
type AccountToken struct {
	TokenHash string       `json:"-"`
	UserID    uuid.UUID    `json:"user_id"`
	Purpose   TokenPurpose `json:"purpose"`
	ExpiresAt time.Time    `json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Usable reports whether the token is unused and not expired at now
func (t *AccountToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// Session is what a successful sign-in returns to the caller
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserProfile `json:"user"`
}
