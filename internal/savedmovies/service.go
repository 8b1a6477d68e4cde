// Package savedmovies keeps each account's list of saved movie summaries.
package savedmovies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/validation"
	"go.uber.org/zap"
)

// KeyPrefix precedes the user id in storage keys
const KeyPrefix = "savedMovies_"

var (
	// ErrNoUser is returned when an operation is attempted without a user id
	ErrNoUser = errors.New("user id is required")
	// ErrInvalidMovie wraps validation failures of a saved movie
	ErrInvalidMovie = errors.New("invalid movie")
)

// Key returns the storage key of uid's list
func Key(uid string) string {
	return KeyPrefix + uid
}

// Service implements the saved list operations on top of a KV
type Service struct {
	kv  KV
	log *zap.Logger
}

// NewService creates a saved movies service
func NewService(kv KV, log *zap.Logger) *Service {
	return &Service{kv: kv, log: logger.OrNop(log)}
}

// List returns uid's saved movies in insertion order
func (s *Service) List(ctx context.Context, uid string) ([]models.SavedMovie, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrNoUser
	}
	return s.kv.Load(ctx, Key(uid))
}

// Toggle removes movie if it is saved, otherwise appends it.
// It reports whether the movie is saved afterwards and returns the new list.
func (s *Service) Toggle(ctx context.Context, uid string, movie models.SavedMovie) (bool, []models.SavedMovie, error) {
	if strings.TrimSpace(uid) == "" {
		return false, nil, ErrNoUser
	}
	if err := validation.Validate.Struct(movie); err != nil {
		return false, nil, fmt.Errorf("%w: %s", ErrInvalidMovie, validation.Message(err))
	}

	var saved bool
	list, err := s.kv.Update(ctx, Key(uid), func(current []models.SavedMovie) ([]models.SavedMovie, error) {
		if i := indexOf(current, movie.ID); i >= 0 {
			saved = false
			return append(current[:i:i], current[i+1:]...), nil
		}
		saved = true
		return append(current, movie), nil
	})
	if err != nil {
		return false, nil, fmt.Errorf("toggle saved movie: %w", err)
	}

	s.log.Debug("saved_movie_toggled",
		zap.String("user_id", logger.SanitizeUserID(uid)),
		zap.Int("movie_id", movie.ID),
		zap.Bool("saved", saved),
	)
	return saved, list, nil
}

// Remove drops id from uid's list. Removing an absent id is not an error.
func (s *Service) Remove(ctx context.Context, uid string, id int) ([]models.SavedMovie, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, ErrNoUser
	}
	list, err := s.kv.Update(ctx, Key(uid), func(current []models.SavedMovie) ([]models.SavedMovie, error) {
		if i := indexOf(current, id); i >= 0 {
			return append(current[:i:i], current[i+1:]...), nil
		}
		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove saved movie: %w", err)
	}
	return list, nil
}

// IsSaved reports whether id is in uid's list
func (s *Service) IsSaved(ctx context.Context, uid string, id int) (bool, error) {
	list, err := s.List(ctx, uid)
	if err != nil {
		return false, err
	}
	return indexOf(list, id) >= 0, nil
}

// Clear deletes uid's list
func (s *Service) Clear(ctx context.Context, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return ErrNoUser
	}
	return s.kv.Delete(ctx, Key(uid))
}

func indexOf(list []models.SavedMovie, id int) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
