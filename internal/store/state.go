// Package store holds the client-side state tree of moviectl. Actions are
// folded into an immutable State by Reduce; thunks call the API and dispatch
// pending, fulfilled and rejected actions around each request.
package store

import (
	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
)

// Status is the lifecycle of an asynchronous section
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ListState is a paged movie list
type ListState struct {
	List        []models.Movie `json:"list"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
}

// TrendingState is the unpaged trending list
type TrendingState struct {
	List   []models.Movie `json:"list"`
	Status Status         `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// SearchState holds the last search and its results
type SearchState struct {
	Results      []models.Movie `json:"results"`
	Query        string         `json:"query"`
	Status       Status         `json:"status"`
	Error        string         `json:"error,omitempty"`
	CurrentPage  int            `json:"current_page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// DetailsState holds the last movie opened
type DetailsState struct {
	Data   *client.MovieDetails `json:"data"`
	Status Status               `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// MoviesState groups the catalog sections
type MoviesState struct {
	Popular    ListState     `json:"popular"`
	Upcoming   ListState     `json:"upcoming"`
	TopRated   ListState     `json:"top_rated"`
	NowPlaying ListState     `json:"now_playing"`
	Trending   TrendingState `json:"trending"`
	Search     SearchState   `json:"search"`
	Details    DetailsState  `json:"details"`
}

// AuthState is the signed-in user, nil when signed out
type AuthState struct {
	User   *models.UserProfile `json:"user"`
	Status Status              `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// SavedState is the signed-in user's saved list
type SavedState struct {
	List   []models.SavedMovie `json:"list"`
	Status Status              `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// Contains reports whether id is on the list
func (s SavedState) Contains(id int) bool {
	for _, m := range s.List {
		if m.ID == id {
			return true
		}
	}
	return false
}

// State is the whole client state tree
type State struct {
	Movies MoviesState `json:"movies"`
	Auth   AuthState   `json:"auth"`
	Saved  SavedState  `json:"saved"`
}

// InitialState returns the state before any action
func InitialState() State {
	return State{
		Movies: MoviesState{
			Popular:    initialList(),
			Upcoming:   initialList(),
			TopRated:   initialList(),
			NowPlaying: initialList(),
			Trending:   TrendingState{List: []models.Movie{}, Status: StatusIdle},
			Search:     initialSearch(),
			Details:    DetailsState{Status: StatusIdle},
		},
		Auth:  AuthState{Status: StatusIdle},
		Saved: initialSaved(),
	}
}

func initialList() ListState {
	return ListState{List: []models.Movie{}, Status: StatusIdle, CurrentPage: 1}
}

func initialSearch() SearchState {
	return SearchState{Results: []models.Movie{}, Status: StatusIdle, CurrentPage: 1}
}

func initialSaved() SavedState {
	return SavedState{List: []models.SavedMovie{}, Status: StatusIdle}
}
