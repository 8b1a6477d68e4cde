package store

import (
	"github.com/benvon/moviebox/internal/models"
)

// ActionType names what happened
type ActionType string

const (
	TypeFetchPopular       ActionType = "movies/fetchPopular"
	TypeFetchUpcoming      ActionType = "movies/fetchUpcoming"
	TypeFetchTopRated      ActionType = "movies/fetchTopRated"
	TypeFetchNowPlaying    ActionType = "movies/fetchNowPlaying"
	TypeFetchTrending      ActionType = "movies/fetchTrending"
	TypeSearchMovies       ActionType = "movies/searchMovies"
	TypeFetchMovieDetails  ActionType = "movies/fetchMovieDetails"
	TypeClearSearchResults ActionType = "movies/clearSearchResults"

	TypeRegister    ActionType = "auth/register"
	TypeLogin       ActionType = "auth/login"
	TypeLogout      ActionType = "auth/logout"
	TypeRefreshUser ActionType = "auth/refreshUser"
	TypeSetUser     ActionType = "auth/setUser"
	TypeClearError  ActionType = "auth/clearError"

	TypeFetchSaved  ActionType = "saved/fetch"
	TypeToggleSaved ActionType = "saved/toggle"
	TypeRemoveSaved ActionType = "saved/remove"
	TypeClearSaved  ActionType = "saved/clear"
)

// Phase is the stage of an asynchronous action; empty for plain actions
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Action is dispatched to the store. Payload depends on Type and Phase:
//
//	list fetches, fulfilled:     *models.MoviePage
//	search, pending:             string (the query)
//	search, fulfilled:           SearchResult
//	details, fulfilled:          *client.MovieDetails
//	register/login/refresh/set:  *models.UserProfile
//	saved actions, fulfilled:    []models.SavedMovie
type Action struct {
	Type    ActionType
	Phase   Phase
	Payload any
	Err     string
}

func (a Action) String() string {
	if a.Phase == "" {
		return string(a.Type)
	}
	return string(a.Type) + "/" + string(a.Phase)
}

// SearchResult is the fulfilled payload of a search
type SearchResult struct {
	Query string
	Page  *models.MoviePage
}

// Pending builds the pending stage of t
func Pending(t ActionType, payload any) Action {
	return Action{Type: t, Phase: PhasePending, Payload: payload}
}

// Fulfilled builds the fulfilled stage of t
func Fulfilled(t ActionType, payload any) Action {
	return Action{Type: t, Phase: PhaseFulfilled, Payload: payload}
}

// Rejected builds the rejected stage of t carrying err's message
func Rejected(t ActionType, err error) Action {
	a := Action{Type: t, Phase: PhaseRejected}
	if err != nil {
		a.Err = err.Error()
	}
	return a
}

// SetUser replaces the signed-in user, nil meaning signed out
func SetUser(user *models.UserProfile) Action {
	return Action{Type: TypeSetUser, Payload: user}
}

// ClearError clears the auth error
func ClearError() Action {
	return Action{Type: TypeClearError}
}

// ClearSearchResults resets the search section
func ClearSearchResults() Action {
	return Action{Type: TypeClearSearchResults}
}
