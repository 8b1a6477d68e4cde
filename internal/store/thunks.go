package store

import (
	"context"
	"errors"
	"strings"

	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
)

// Thunk runs an API call, dispatching its progress. The returned error is
// the one recorded in the rejected action.
type Thunk func(ctx context.Context, api API, dispatch func(Action)) error

// ErrEmptyQuery rejects blank searches before any request is made
var ErrEmptyQuery = errors.New("search query is empty")

func pageThunk(t ActionType, fetch func(context.Context, API) (*models.MoviePage, error)) Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(t, nil))
		page, err := fetch(ctx, api)
		if err != nil {
			dispatch(Rejected(t, err))
			return err
		}
		dispatch(Fulfilled(t, page))
		return nil
	}
}

// FetchPopular loads a page of popular movies
func FetchPopular(page int) Thunk {
	return pageThunk(TypeFetchPopular, func(ctx context.Context, api API) (*models.MoviePage, error) {
		return api.Popular(ctx, page)
	})
}

// FetchUpcoming loads a page of upcoming movies
func FetchUpcoming(page int) Thunk {
	return pageThunk(TypeFetchUpcoming, func(ctx context.Context, api API) (*models.MoviePage, error) {
		return api.Upcoming(ctx, page)
	})
}

// FetchTopRated loads a page of top rated movies
func FetchTopRated(page int) Thunk {
	return pageThunk(TypeFetchTopRated, func(ctx context.Context, api API) (*models.MoviePage, error) {
		return api.TopRated(ctx, page)
	})
}

// FetchNowPlaying loads a page of movies in theatres
func FetchNowPlaying(page int) Thunk {
	return pageThunk(TypeFetchNowPlaying, func(ctx context.Context, api API) (*models.MoviePage, error) {
		return api.NowPlaying(ctx, page)
	})
}

// FetchTrending loads the trending list for window ("day" or "week")
func FetchTrending(window string) Thunk {
	return pageThunk(TypeFetchTrending, func(ctx context.Context, api API) (*models.MoviePage, error) {
		return api.Trending(ctx, window)
	})
}

// SearchMovies searches the catalog
func SearchMovies(query string, page int) Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		query = strings.TrimSpace(query)
		dispatch(Pending(TypeSearchMovies, query))
		if query == "" {
			dispatch(Rejected(TypeSearchMovies, ErrEmptyQuery))
			return ErrEmptyQuery
		}
		res, err := api.Search(ctx, query, page)
		if err != nil {
			dispatch(Rejected(TypeSearchMovies, err))
			return err
		}
		dispatch(Fulfilled(TypeSearchMovies, SearchResult{Query: query, Page: res}))
		return nil
	}
}

// FetchMovieDetails loads one movie
func FetchMovieDetails(id int) Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(TypeFetchMovieDetails, id))
		d, err := api.Details(ctx, id)
		if err != nil {
			dispatch(Rejected(TypeFetchMovieDetails, err))
			return err
		}
		dispatch(Fulfilled(TypeFetchMovieDetails, d))
		return nil
	}
}

func sessionThunk(t ActionType, start func(context.Context, API) (*models.Session, error)) Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(t, nil))
		session, err := start(ctx, api)
		if err != nil {
			dispatch(Rejected(t, err))
			return err
		}
		user := session.User
		dispatch(Fulfilled(t, &user))
		return nil
	}
}

// Register creates an account and signs in
func Register(email, password, displayName string) Thunk {
	return sessionThunk(TypeRegister, func(ctx context.Context, api API) (*models.Session, error) {
		return api.Register(ctx, email, password, displayName)
	})
}

// Login signs in with email and password
func Login(email, password string) Thunk {
	return sessionThunk(TypeLogin, func(ctx context.Context, api API) (*models.Session, error) {
		return api.Login(ctx, email, password)
	})
}

// LoginWithGoogle exchanges a Google ID token for a session
func LoginWithGoogle(idToken string) Thunk {
	return sessionThunk(TypeLogin, func(ctx context.Context, api API) (*models.Session, error) {
		return api.LoginWithGoogle(ctx, idToken)
	})
}

// Logout ends the session
func Logout() Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(TypeLogout, nil))
		if err := api.Logout(ctx); err != nil {
			dispatch(Rejected(TypeLogout, err))
			return err
		}
		dispatch(Fulfilled(TypeLogout, nil))
		return nil
	}
}

// RefreshUser reloads the signed-in profile. An expired session signs the
// user out locally instead of failing.
func RefreshUser() Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(TypeRefreshUser, nil))
		user, err := api.Me(ctx)
		if errors.Is(err, client.ErrUnauthorized) {
			dispatch(SetUser(nil))
			return nil
		}
		if err != nil {
			dispatch(Rejected(TypeRefreshUser, err))
			return err
		}
		dispatch(Fulfilled(TypeRefreshUser, user))
		return nil
	}
}

func savedThunk(t ActionType, call func(context.Context, API) ([]models.SavedMovie, error)) Thunk {
	return func(ctx context.Context, api API, dispatch func(Action)) error {
		dispatch(Pending(t, nil))
		list, err := call(ctx, api)
		if err != nil {
			dispatch(Rejected(t, err))
			return err
		}
		dispatch(Fulfilled(t, list))
		return nil
	}
}

// FetchSaved loads the saved list
func FetchSaved() Thunk {
	return savedThunk(TypeFetchSaved, func(ctx context.Context, api API) ([]models.SavedMovie, error) {
		return api.SavedMovies(ctx)
	})
}

// ToggleSaved saves movie, or removes it when already saved. The resulting
// membership can be read with State().Saved.Contains.
func ToggleSaved(movie models.SavedMovie) Thunk {
	return savedThunk(TypeToggleSaved, func(ctx context.Context, api API) ([]models.SavedMovie, error) {
		_, list, err := api.ToggleSaved(ctx, movie)
		return list, err
	})
}

// RemoveSaved drops id from the saved list
func RemoveSaved(id int) Thunk {
	return savedThunk(TypeRemoveSaved, func(ctx context.Context, api API) ([]models.SavedMovie, error) {
		return api.RemoveSaved(ctx, id)
	})
}

// ClearSaved empties the saved list
func ClearSaved() Thunk {
	return savedThunk(TypeClearSaved, func(ctx context.Context, api API) ([]models.SavedMovie, error) {
		return nil, api.ClearSaved(ctx)
	})
}
