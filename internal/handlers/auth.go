package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/benvon/moviebox/internal/auth"
	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/request"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AuthService is the identity service behind the auth endpoints
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*models.Session, error)
	BeginGoogleLogin(ctx context.Context) (string, error)
	CompleteGoogleLogin(ctx context.Context, state, code string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User, upd auth.ProfileUpdate) (*models.User, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	svc AuthService
	// callbackURL receives the browser after the Google code flow; empty answers with JSON
	callbackURL string
	log         *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, callbackURL string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, callbackURL: callbackURL, log: logger.OrNop(log)}
}

// RegisterCredentialRoutes registers the endpoints that accept credentials or one-time tokens.
// The router should carry the /auth prefix and the stricter rate limit.
func (h *AuthHandler) RegisterCredentialRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/google", h.Google).Methods("POST")
	r.HandleFunc("/password-reset", h.RequestPasswordReset).Methods("POST")
	r.HandleFunc("/password-reset/confirm", h.ConfirmPasswordReset).Methods("POST")
	r.HandleFunc("/verify-email", h.VerifyEmail).Methods("POST")
	r.HandleFunc("/google/login", h.GoogleLogin).Methods("GET")
	r.HandleFunc("/google/callback", h.GoogleCallback).Methods("GET")
}

// RegisterSessionRoutes registers the endpoints that require an authenticated session
func (h *AuthHandler) RegisterSessionRoutes(r *mux.Router) {
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/me", h.Me).Methods("GET")
	r.HandleFunc("/me", h.UpdateMe).Methods("PATCH")
	r.HandleFunc("/verify-email/resend", h.ResendVerification).Methods("POST")
}

// RegisterRequest is the sign-up body
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,max=254"`
	Password    string `json:"password" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// LoginRequest is the e-mail/password sign-in body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// GoogleRequest carries an ID token obtained by the client from Google
type GoogleRequest struct {
	IDToken string `json:"id_token" validate:"required,max=8192"`
}

// PasswordResetRequest asks for a reset link
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// PasswordResetConfirmRequest sets a new password with a reset token
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=128"`
}

// VerifyEmailRequest confirms an e-mail address
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

// UpdateProfileRequest changes profile fields; absent fields are left untouched
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	PhotoURL    *string `json:"photo_url,omitempty" validate:"omitempty,max=2048"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.authError(w, "register", err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.authError(w, "login", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Google handles POST /auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		h.authError(w, "google", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GoogleLogin handles GET /auth/google/login and returns the consent URL
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	consentURL, err := h.svc.BeginGoogleLogin(r.Context())
	if err != nil {
		h.authError(w, "google_login", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": consentURL})
}

// GoogleCallback handles GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		h.log.Info("google_consent_denied", zap.String("reason", logger.SanitizeString(reason, 64)))
		h.callbackFailure(w, r, http.StatusUnauthorized, "Unauthorized", "Google sign-in was cancelled", "access_denied")
		return
	}

	session, err := h.svc.CompleteGoogleLogin(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if h.callbackURL == "" {
			h.authError(w, "google_callback", err)
			return
		}
		code := "sign_in_failed"
		if errors.Is(err, auth.ErrInvalidState) {
			code = "invalid_state"
		}
		h.log.Info("google_callback_failed", zap.Error(err))
		h.callbackFailure(w, r, http.StatusUnauthorized, "Unauthorized", "Google sign-in failed", code)
		return
	}

	if h.callbackURL == "" {
		respondJSON(w, http.StatusOK, session)
		return
	}
	fragment := url.Values{
		"token":      {session.Token},
		"expires_at": {session.ExpiresAt.UTC().Format(time.RFC3339)},
	}
	http.Redirect(w, r, h.callbackURL+"#"+fragment.Encode(), http.StatusFound)
}

func (h *AuthHandler) callbackFailure(w http.ResponseWriter, r *http.Request, status int, errorType, message, code string) {
	if h.callbackURL == "" {
		respondJSONError(w, status, errorType, message)
		return
	}
	http.Redirect(w, r, h.callbackURL+"#"+url.Values{"error": {code}}.Encode(), http.StatusFound)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := request.BearerToken(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header")
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.authError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, user.Profile())
}

// UpdateMe handles PATCH /auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), user, auth.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.authError(w, "update_profile", err)
		return
	}
	respondJSON(w, http.StatusOK, updated.Profile())
}

// RequestPasswordReset handles POST /auth/password-reset.
// The answer does not reveal whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.authError(w, "password_reset", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for this address, a reset link has been sent",
	})
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.authError(w, "password_reset_confirm", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Token); err != nil {
		h.authError(w, "verify_email", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// ResendVerification handles POST /auth/verify-email/resend
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	if err := h.svc.ResendVerification(r.Context(), user); err != nil {
		h.authError(w, "resend_verification", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Verification email queued"})
}

// authError maps identity failures to responses
func (h *AuthHandler) authError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidSession):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired session")
	case errors.Is(err, auth.ErrEmailInUse):
		respondJSONError(w, http.StatusConflict, "Conflict", "Email already in use")
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidPhotoURL):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or expired token")
	case errors.Is(err, auth.ErrInvalidState):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid or expired sign-in state")
	case errors.Is(err, auth.ErrGoogleDisabled):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Google sign-in is not configured")
	default:
		h.log.Error("auth_operation_failed", zap.String("operation", op), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Authentication request failed")
	}
}
