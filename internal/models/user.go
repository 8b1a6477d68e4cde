package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies how an account signs in
type AuthProvider string

const (
	// AuthProviderPassword is an email/password account
	AuthProviderPassword AuthProvider = "password"
	// AuthProviderGoogle is an account created through Google sign-in
	AuthProviderGoogle AuthProvider = "google"
)

// User represents a user in the system
type User struct {
	ID            uuid.UUID    `json:"id"`
	Email         string       `json:"email"`
	DisplayName   *string      `json:"display_name,omitempty"`
	PhotoURL      *string      `json:"photo_url,omitempty"`
	Provider      AuthProvider `json:"provider"`
	ProviderID    *string      `json:"-"` // subject at the federated identity provider
	PasswordHash  *string      `json:"-"`
	EmailVerified bool         `json:"email_verified"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// UserProfile is the public view of an account
type UserProfile struct {
	UID           string  `json:"uid"`
	Email         string  `json:"email"`
	DisplayName   *string `json:"display_name"`
	PhotoURL      *string `json:"photo_url"`
	EmailVerified bool    `json:"email_verified"`
}

// Profile returns the public view of u
func (u *User) Profile() UserProfile {
	return UserProfile{
		UID:           u.ID.String(),
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
	}
}

// HasPassword reports whether the account can sign in with email/password
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
