package store

import (
	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
)

// Reduce folds a into s and returns the new state. s is not modified; slices
// are replaced, never written in place, so earlier snapshots stay valid.
func Reduce(s State, a Action) State {
	s.Movies = reduceMovies(s.Movies, a)
	s.Auth = reduceAuth(s.Auth, a)
	s.Saved = reduceSaved(s.Saved, a)
	return s
}

func reduceMovies(m MoviesState, a Action) MoviesState {
	switch a.Type {
	case TypeFetchPopular:
		m.Popular = reduceList(m.Popular, a)
	case TypeFetchUpcoming:
		m.Upcoming = reduceList(m.Upcoming, a)
	case TypeFetchTopRated:
		m.TopRated = reduceList(m.TopRated, a)
	case TypeFetchNowPlaying:
		m.NowPlaying = reduceList(m.NowPlaying, a)
	case TypeFetchTrending:
		m.Trending = reduceTrending(m.Trending, a)
	case TypeSearchMovies:
		m.Search = reduceSearch(m.Search, a)
	case TypeFetchMovieDetails:
		m.Details = reduceDetails(m.Details, a)
	case TypeClearSearchResults:
		m.Search = initialSearch()
	}
	return m
}

func reduceList(l ListState, a Action) ListState {
	switch a.Phase {
	case PhasePending:
		l.Status = StatusLoading
	case PhaseFulfilled:
		page, _ := a.Payload.(*models.MoviePage)
		l.Status = StatusSucceeded
		l.Error = ""
		l.List, l.CurrentPage, l.TotalPages, _ = pageFields(page)
	case PhaseRejected:
		l.Status = StatusFailed
		l.Error = a.Err
	}
	return l
}

func reduceTrending(t TrendingState, a Action) TrendingState {
	switch a.Phase {
	case PhasePending:
		t.Status = StatusLoading
	case PhaseFulfilled:
		page, _ := a.Payload.(*models.MoviePage)
		t.Status = StatusSucceeded
		t.Error = ""
		t.List, _, _, _ = pageFields(page)
	case PhaseRejected:
		t.Status = StatusFailed
		t.Error = a.Err
	}
	return t
}

func reduceSearch(s SearchState, a Action) SearchState {
	switch a.Phase {
	case PhasePending:
		s.Status = StatusLoading
		if q, ok := a.Payload.(string); ok && q != "" {
			s.Query = q
		}
	case PhaseFulfilled:
		res, _ := a.Payload.(SearchResult)
		s.Status = StatusSucceeded
		s.Error = ""
		s.Results, s.CurrentPage, s.TotalPages, s.TotalResults = pageFields(res.Page)
		if res.Query != "" {
			s.Query = res.Query
		}
	case PhaseRejected:
		s.Status = StatusFailed
		s.Error = a.Err
	}
	return s
}

func reduceDetails(d DetailsState, a Action) DetailsState {
	switch a.Phase {
	case PhasePending:
		d.Status = StatusLoading
	case PhaseFulfilled:
		d.Data, _ = a.Payload.(*client.MovieDetails)
		d.Status = StatusSucceeded
		d.Error = ""
	case PhaseRejected:
		d.Status = StatusFailed
		d.Error = a.Err
	}
	return d
}

// pageFields unpacks a page, defaulting a missing page to an empty first page
func pageFields(p *models.MoviePage) (results []models.Movie, page, totalPages, totalResults int) {
	if p == nil {
		return []models.Movie{}, 1, 0, 0
	}
	results = p.Results
	if results == nil {
		results = []models.Movie{}
	}
	page = p.Page
	if page < 1 {
		page = 1
	}
	return results, page, p.TotalPages, p.TotalResults
}

func reduceAuth(s AuthState, a Action) AuthState {
	switch a.Type {
	case TypeRegister, TypeLogin, TypeRefreshUser:
		switch a.Phase {
		case PhasePending:
			s.Status = StatusLoading
			s.Error = ""
		case PhaseFulfilled:
			s.Status = StatusSucceeded
			s.User, _ = a.Payload.(*models.UserProfile)
		case PhaseRejected:
			s.Status = StatusFailed
			s.Error = a.Err
		}
	case TypeLogout:
		switch a.Phase {
		case PhaseFulfilled:
			return AuthState{Status: StatusIdle}
		case PhaseRejected:
			s.Error = a.Err
		}
	case TypeSetUser:
		s.User, _ = a.Payload.(*models.UserProfile)
		s.Status = StatusSucceeded
		s.Error = ""
	case TypeClearError:
		s.Error = ""
	}
	return s
}

func reduceSaved(s SavedState, a Action) SavedState {
	switch a.Type {
	case TypeFetchSaved, TypeToggleSaved, TypeRemoveSaved, TypeClearSaved:
		switch a.Phase {
		case PhasePending:
			s.Status = StatusLoading
		case PhaseFulfilled:
			list, _ := a.Payload.([]models.SavedMovie)
			if list == nil {
				list = []models.SavedMovie{}
			}
			s.List = list
			s.Status = StatusSucceeded
			s.Error = ""
		case PhaseRejected:
			s.Status = StatusFailed
			s.Error = a.Err
		}
	case TypeLogout:
		if a.Phase == PhaseFulfilled {
			return initialSaved()
		}
	}
	return s
}
