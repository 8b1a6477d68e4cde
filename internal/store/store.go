package store

import (
	"context"
	"sync"

	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
)

// API is the part of the moviebox client the thunks call
type API interface {
	Popular(ctx context.Context, page int) (*models.MoviePage, error)
	Upcoming(ctx context.Context, page int) (*models.MoviePage, error)
	TopRated(ctx context.Context, page int) (*models.MoviePage, error)
	NowPlaying(ctx context.Context, page int) (*models.MoviePage, error)
	Trending(ctx context.Context, window string) (*models.MoviePage, error)
	Search(ctx context.Context, query string, page int) (*models.MoviePage, error)
	Details(ctx context.Context, id int) (*client.MovieDetails, error)
	Register(ctx context.Context, email, password, displayName string) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*models.Session, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.UserProfile, error)
	SavedMovies(ctx context.Context) ([]models.SavedMovie, error)
	ToggleSaved(ctx context.Context, movie models.SavedMovie) (bool, []models.SavedMovie, error)
	RemoveSaved(ctx context.Context, id int) ([]models.SavedMovie, error)
	ClearSaved(ctx context.Context) error
}

var _ API = (*client.Client)(nil)

// Listener is called after every dispatch with the new state
type Listener func(State, Action)

// Store owns the state tree
type Store struct {
	api API

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

// New creates a store in the initial state
func New(api API) *Store {
	return &Store{api: api, state: InitialState(), listeners: make(map[int]Listener)}
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch reduces a into the state and notifies listeners with the result.
// Listeners run on the dispatching goroutine after the lock is released.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next, a)
	}
}

// Subscribe registers l and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Run executes t against the store's API
func (s *Store) Run(ctx context.Context, t Thunk) error {
	return t(ctx, s.api, s.Dispatch)
}
