// Package auth implements account registration, sign-in and sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/queue"
	"github.com/benvon/moviebox/internal/services/oidc"
	"github.com/benvon/moviebox/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PasswordResetTTL is how long a reset link stays valid
	PasswordResetTTL = time.Hour
	// EmailVerificationTTL is how long a verification link stays valid
	EmailVerificationTTL = 72 * time.Hour
	// OAuthStateTTL bounds the time between consent redirect and callback
	OAuthStateTTL = 10 * time.Minute

	oauthStatePrefix = "oauth_state:"
	maxDisplayName   = 100
)

// MailQueue accepts account e-mail jobs
type MailQueue interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// GoogleSignIn verifies Google identities and drives the authorization code flow
type GoogleSignIn interface {
	VerifyIDToken(ctx context.Context, idToken string) (*models.IDTokenClaims, error)
	AuthCodeURL(ctx context.Context, state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// Options wires a Service
type Options struct {
	Users    database.UserRepositoryInterface
	Tokens   database.AccountTokenRepositoryInterface
	Sessions *SessionManager
	States   Ephemeral
	Mail     MailQueue    // nil disables account e-mails
	Google   GoogleSignIn // nil disables Google sign-in
	// LinkBaseURL prefixes the links sent by e-mail, e.g. https://movies.example.com
	LinkBaseURL string
	Logger      *zap.Logger
}

// Service is the identity service
type Service struct {
	users    database.UserRepositoryInterface
	tokens   database.AccountTokenRepositoryInterface
	sessions *SessionManager
	states   Ephemeral
	mail     MailQueue
	google   GoogleSignIn
	linkBase string
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the identity service
func NewService(opts Options) *Service {
	return &Service{
		users:    opts.Users,
		tokens:   opts.Tokens,
		sessions: opts.Sessions,
		states:   opts.States,
		mail:     opts.Mail,
		google:   opts.Google,
		linkBase: strings.TrimRight(opts.LinkBaseURL, "/"),
		log:      logger.OrNop(opts.Logger),
		now:      time.Now,
	}
}

// RegisterInput is the sign-up form
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// ProfileUpdate carries the profile fields to change; nil leaves a field untouched
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// Register creates an e-mail/password account, signs it in and queues a verification e-mail
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Provider:     models.AuthProviderPassword,
		PasswordHash: &hash,
	}
	if name := cleanDisplayName(in.DisplayName); name != "" {
		user.DisplayName = &name
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	session, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.log.Warn("verification_email_not_queued",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("user_registered", zap.String("user_id", user.ID.String()), zap.String("email", logger.MaskEmail(email)))
	return session, nil
}

// Login signs in with e-mail and password
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !user.HasPassword() || !CheckPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.sessions.Issue(ctx, user)
}

// SignInWithGoogle verifies a Google ID token, provisions or links the account and signs it in
func (s *Service) SignInWithGoogle(ctx context.Context, idToken string) (*models.Session, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	claims, err := s.google.VerifyIDToken(ctx, idToken)
	if errors.Is(err, oidc.ErrNotConfigured) {
		return nil, ErrGoogleDisabled
	}
	if err != nil {
		s.log.Info("google_token_rejected", zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	user, err := s.googleUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.sessions.Issue(ctx, user)
}

func (s *Service) googleUser(ctx context.Context, claims *models.IDTokenClaims) (*models.User, error) {
	user, err := s.users.GetByProviderID(ctx, claims.Sub)
	if err == nil {
		if s.refreshFromClaims(user, claims) {
			if err := s.users.Update(ctx, user); err != nil {
				s.log.Warn("google_profile_refresh_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
			}
		}
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("google sign-in: %w", err)
	}

	if claims.Email == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, claims.Email)
	switch {
	case err == nil:
		// Link only when Google vouches for the address
		if !claims.EmailVerified {
			return nil, ErrEmailInUse
		}
		if existing.ProviderID != nil {
			// already linked to another Google identity
			return nil, ErrEmailInUse
		}
		sub := claims.Sub
		existing.ProviderID = &sub
		existing.EmailVerified = true
		s.refreshFromClaims(existing, claims)
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		s.log.Info("google_account_linked", zap.String("user_id", existing.ID.String()))
		return existing, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("google sign-in: %w", err)
	}

	sub := claims.Sub
	user = &models.User{
		ID:            uuid.New(),
		Email:         claims.Email,
		Provider:      models.AuthProviderGoogle,
		ProviderID:    &sub,
		EmailVerified: claims.EmailVerified,
	}
	s.refreshFromClaims(user, claims)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create google user: %w", err)
	}
	s.log.Info("user_registered", zap.String("user_id", user.ID.String()), zap.String("provider", string(models.AuthProviderGoogle)))
	return user, nil
}

// refreshFromClaims fills empty profile fields from claims and reports whether u changed
func (s *Service) refreshFromClaims(u *models.User, claims *models.IDTokenClaims) bool {
	changed := false
	if u.DisplayName == nil && claims.Name != "" {
		name := cleanDisplayName(claims.Name)
		u.DisplayName = &name
		changed = true
	}
	if u.PhotoURL == nil && claims.Picture != "" {
		pic := claims.Picture
		u.PhotoURL = &pic
		changed = true
	}
	if claims.EmailVerified && !u.EmailVerified {
		u.EmailVerified = true
		changed = true
	}
	return changed
}

// BeginGoogleLogin stores a fresh state and returns Google's consent URL
func (s *Service) BeginGoogleLogin(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	state, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.states.Put(ctx, oauthStatePrefix+state, "1", OAuthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	u, err := s.google.AuthCodeURL(ctx, state)
	if errors.Is(err, oidc.ErrNotConfigured) {
		return "", ErrGoogleDisabled
	}
	return u, err
}

// CompleteGoogleLogin consumes state, exchanges code and signs the user in
func (s *Service) CompleteGoogleLogin(ctx context.Context, state, code string) (*models.Session, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	if state == "" {
		return nil, ErrInvalidState
	}
	if _, err := s.states.Take(ctx, oauthStatePrefix+state); err != nil {
		if errors.Is(err, ErrMissing) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	idToken, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		s.log.Warn("google_code_exchange_failed", zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	return s.SignInWithGoogle(ctx, idToken)
}

// Logout revokes the session behind token
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a session token to its user
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return user, nil
}

// RequestPasswordReset queues a reset link for email. It succeeds whether or
// not an account exists so callers cannot enumerate registered addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.log.Error("password_reset_lookup_failed", zap.Error(err))
		}
		return nil
	}
	link, exp, err := s.issueToken(ctx, user, models.TokenPurposePasswordReset, PasswordResetTTL, "/reset-password")
	if err != nil {
		s.log.Error("password_reset_token_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil
	}
	if err := s.enqueue(ctx, queue.JobTypePasswordResetEmail, user, link, exp); err != nil {
		s.log.Error("password_reset_email_not_queued", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	tok, err := s.consume(ctx, token, models.TokenPurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, tok.UserID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	// Any other links mailed before the reset stop working
	if err := s.tokens.DeleteForUser(ctx, tok.UserID); err != nil {
		s.log.Warn("account_token_revoke_failed", zap.String("user_id", tok.UserID.String()), zap.Error(err))
	}
	s.log.Info("password_reset", zap.String("user_id", tok.UserID.String()))
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	tok, err := s.consume(ctx, token, models.TokenPurposeEmailVerification)
	if err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, tok.UserID); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return nil
}

// ResendVerification queues a new verification e-mail for an unverified account
func (s *Service) ResendVerification(ctx context.Context, user *models.User) error {
	if user.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// UpdateProfile changes display name and photo URL
func (s *Service) UpdateProfile(ctx context.Context, user *models.User, upd ProfileUpdate) (*models.User, error) {
	if upd.DisplayName != nil {
		name := cleanDisplayName(*upd.DisplayName)
		if name == "" {
			user.DisplayName = nil
		} else {
			user.DisplayName = &name
		}
	}
	if upd.PhotoURL != nil {
		photo := strings.TrimSpace(*upd.PhotoURL)
		if photo == "" {
			user.PhotoURL = nil
		} else {
			u, err := url.Parse(photo)
			if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
				return nil, ErrInvalidPhotoURL
			}
			user.PhotoURL = &photo
		}
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User) error {
	if s.mail == nil {
		return nil
	}
	link, exp, err := s.issueToken(ctx, user, models.TokenPurposeEmailVerification, EmailVerificationTTL, "/verify-email")
	if err != nil {
		return err
	}
	return s.enqueue(ctx, queue.JobTypeVerificationEmail, user, link, exp)
}

// issueToken stores a hashed one-time token and returns the link carrying the raw value
func (s *Service) issueToken(ctx context.Context, user *models.User, purpose models.TokenPurpose, ttl time.Duration, path string) (string, time.Time, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := s.now().Add(ttl)
	if err := s.tokens.Create(ctx, &models.AccountToken{
		TokenHash: hashToken(raw),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: exp,
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("store %s token: %w", purpose, err)
	}
	return s.linkBase + path + "?token=" + url.QueryEscape(raw), exp, nil
}

func (s *Service) enqueue(ctx context.Context, jobType queue.JobType, user *models.User, link string, notAfter time.Time) error {
	if s.mail == nil {
		return nil
	}
	name := ""
	if user.DisplayName != nil {
		name = *user.DisplayName
	}
	job := queue.NewMailJob(jobType, user.ID, user.Email, name, link)
	job.NotAfter = &notAfter
	return s.mail.Enqueue(ctx, job)
}

func (s *Service) consume(ctx context.Context, token string, purpose models.TokenPurpose) (*models.AccountToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	tok, err := s.tokens.Consume(ctx, hashToken(token), purpose)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return tok, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if err := validation.Validate.Var(email, "required,email,max=254"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func cleanDisplayName(name string) string {
	name = strings.Join(strings.Fields(validation.SanitizeText(name)), " ")
	if r := []rune(name); len(r) > maxDisplayName {
		name = string(r[:maxDisplayName])
	}
	return name
}
