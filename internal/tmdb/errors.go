package tmdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the catalog has no record for the requested id
	ErrNotFound = errors.New("movie not found")
	// ErrEmptyQuery is returned by Search for blank queries without calling the catalog
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrInvalidTimeWindow is returned by Trending for windows other than day and week
	ErrInvalidTimeWindow = errors.New("time window must be day or week")
)

// APIError is a non-2xx answer from the catalog
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"status_code"`
	Message    string `json:"status_message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
