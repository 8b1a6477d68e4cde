package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	sessionIssuer    = "moviebox"
	sessionKeyPrefix = "session:"
)

// SessionManager issues HS256 session tokens and tracks them in an Ephemeral
// store so they can be revoked before expiry
type SessionManager struct {
	secret   []byte
	ttl      time.Duration
	registry Ephemeral
	now      func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(secret string, ttl time.Duration, registry Ephemeral) *SessionManager {
	return &SessionManager{
		secret:   []byte(secret),
		ttl:      ttl,
		registry: registry,
		now:      time.Now,
	}
}

// Issue creates a session for user
func (m *SessionManager) Issue(ctx context.Context, user *models.User) (*models.Session, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	jti := uuid.NewString()

	tok, err := jwt.NewBuilder().
		Issuer(sessionIssuer).
		Subject(user.ID.String()).
		JwtID(jti).
		IssuedAt(now).
		Expiration(exp).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build session token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := m.registry.Put(ctx, sessionKeyPrefix+jti, user.ID.String(), m.ttl); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	return &models.Session{
		Token:     string(signed),
		ExpiresAt: exp,
		User:      user.Profile(),
	}, nil
}

// Verify checks signature, expiry and registration of token
func (m *SessionManager) Verify(ctx context.Context, token string) (*models.SessionClaims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	uid, err := m.registry.Get(ctx, sessionKeyPrefix+claims.SessionID)
	if errors.Is(err, ErrMissing) {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidSession)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if uid != claims.UserID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidSession)
	}
	return claims, nil
}

// Revoke removes token's registration. Revoking an already revoked session is not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if err := m.registry.Delete(ctx, sessionKeyPrefix+claims.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (m *SessionManager) parse(token string) (*models.SessionClaims, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if tok.JwtID() == "" || tok.Subject() == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidSession)
	}
	return &models.SessionClaims{
		UserID:    tok.Subject(),
		SessionID: tok.JwtID(),
		ExpiresAt: tok.Expiration().Unix(),
	}, nil
}
