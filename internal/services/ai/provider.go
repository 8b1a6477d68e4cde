// Package ai builds watchlist digests with an OpenAI-compatible chat model.
package ai

import (
	"context"

	"github.com/benvon/moviebox/internal/models"
)

// Provider turns a saved list into a digest
type Provider interface {
	Digest(ctx context.Context, movies []models.SavedMovie) (*models.Digest, error)
}
