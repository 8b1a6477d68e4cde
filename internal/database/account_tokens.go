package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/google/uuid"
)

// AccountTokenRepository stores hashed one-time tokens for password reset and e-mail verification
type AccountTokenRepository struct {
	db *DB
}

// NewAccountTokenRepository creates a new account token repository
func NewAccountTokenRepository(db *DB) *AccountTokenRepository {
	return &AccountTokenRepository{db: db}
}

// Create stores a token, invalidating any earlier unused token of the same purpose for the user
func (r *AccountTokenRepository) Create(ctx context.Context, token *models.AccountToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin token transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE account_tokens SET used_at = $3
		WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL
	`, token.UserID, string(token.Purpose), now); err != nil {
		return fmt.Errorf("failed to invalidate previous tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_tokens (token_hash, user_id, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.TokenHash, token.UserID, string(token.Purpose), token.ExpiresAt, now); err != nil {
		return fmt.Errorf("failed to create account token: %w", err)
	}
	token.CreatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account token: %w", err)
	}
	return nil
}

// Consume marks a usable token as used and returns it. Unknown, used or expired tokens yield ErrNotFound.
func (r *AccountTokenRepository) Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.AccountToken, error) {
	now := time.Now()
	token := &models.AccountToken{TokenHash: tokenHash, Purpose: purpose}
	err := r.db.QueryRowContext(ctx, `
		UPDATE account_tokens SET used_at = $3
		WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		RETURNING user_id, expires_at, created_at
	`, tokenHash, string(purpose), now).Scan(&token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume account token: %w", err)
	}
	token.UsedAt = &now
	return token, nil
}

// DeleteExpired removes tokens that expired before cutoff and returns how many were removed
func (r *AccountTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM account_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// DeleteForUser removes all tokens of a user
func (r *AccountTokenRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM account_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}
