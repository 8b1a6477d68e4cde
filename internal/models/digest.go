package models

import "time"

// Suggestion is a title recommended by the watchlist digest
type Suggestion struct {
	Title  string `json:"title"`
	Year   string `json:"year,omitempty"`
	Reason string `json:"reason"`
}

// Digest summarizes the taste expressed by a saved list
type Digest struct {
	Summary     string       `json:"summary"`
	Suggestions []Suggestion `json:"suggestions"`
	MovieCount  int          `json:"movie_count"`
	Model       string       `json:"model"`
	GeneratedAt time.Time    `json:"generated_at"`
}
