package database

import (
	"context"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/google/uuid"
)

// UserRepositoryInterface is the user storage the identity service depends on
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// AccountTokenRepositoryInterface stores one-time account tokens
type AccountTokenRepositoryInterface interface {
	Create(ctx context.Context, token *models.AccountToken) error
	Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.AccountToken, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// CorsConfigStore is read by the CORS reloader
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// RatelimitConfigStore is read and seeded by the rate limit reloader
type RatelimitConfigStore interface {
	Get(ctx context.Context, scope string) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// OIDCConfigStore is consulted for Google settings not provided by the environment
type OIDCConfigStore interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface         = (*UserRepository)(nil)
	_ AccountTokenRepositoryInterface = (*AccountTokenRepository)(nil)
	_ CorsConfigStore                 = (*CorsConfigRepository)(nil)
	_ RatelimitConfigStore            = (*RatelimitConfigRepository)(nil)
	_ OIDCConfigStore                 = (*OIDCConfigRepository)(nil)
)
