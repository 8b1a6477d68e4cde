package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown e-mail or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailInUse is returned when registering an e-mail that already has an account
	ErrEmailInUse = errors.New("email already in use")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength
	ErrWeakPassword = errors.New("password should be at least 6 characters")
	// ErrInvalidEmail is returned for malformed e-mail addresses
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidToken is returned for unknown, used or expired reset and verification tokens
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidSession is returned for session tokens that fail verification or were revoked
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrInvalidState is returned when an OAuth callback carries an unknown state
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrInvalidPhotoURL is returned for profile photo URLs that are not absolute http(s) URLs
	ErrInvalidPhotoURL = errors.New("photo_url must be an http(s) URL")
	// ErrGoogleDisabled is returned when Google sign-in is not configured
	ErrGoogleDisabled = errors.New("google sign-in is not configured")
)
