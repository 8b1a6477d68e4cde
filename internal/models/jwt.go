package models

// IDTokenClaims represents the claims extracted from a federated identity token
type IDTokenClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Exp           int64  `json:"exp"`
	Iat           int64  `json:"iat"`
	Iss           string `json:"iss"`
	Aud           string `json:"aud"`
}

// SessionClaims are the claims carried by a moviebox session token
type SessionClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
}
