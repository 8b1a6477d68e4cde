package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/request"
	"github.com/benvon/moviebox/internal/tmdb"
	"github.com/benvon/moviebox/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// topCastSize is how many cast members the details view carries
const topCastSize = 10

// Catalog is the movie catalog used by the movie handlers
type Catalog interface {
	Popular(ctx context.Context, page int, lang string) (*models.MoviePage, error)
	Upcoming(ctx context.Context, page int, lang string) (*models.MoviePage, error)
	TopRated(ctx context.Context, page int, lang string) (*models.MoviePage, error)
	NowPlaying(ctx context.Context, page int, lang string) (*models.MoviePage, error)
	Trending(ctx context.Context, window, lang string) (*models.MoviePage, error)
	Search(ctx context.Context, query string, page int, lang string) (*models.MoviePage, error)
	Details(ctx context.Context, id int, lang string) (*models.MovieDetails, error)
	Genres(ctx context.Context, lang string) ([]models.Genre, error)
}

type pageFetcher func(ctx context.Context, page int, lang string) (*models.MoviePage, error)

// MovieHandler serves catalog browsing and search
type MovieHandler struct {
	catalog     Catalog
	defaultLang string
	log         *zap.Logger
}

// NewMovieHandler creates a movie handler
func NewMovieHandler(catalog Catalog, defaultLang string, log *zap.Logger) *MovieHandler {
	if defaultLang == "" {
		defaultLang = tmdb.DefaultLanguage
	}
	return &MovieHandler{catalog: catalog, defaultLang: defaultLang, log: logger.OrNop(log)}
}

// RegisterRoutes registers catalog routes on the API router
func (h *MovieHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/movies/popular", h.list("popular", h.catalog.Popular)).Methods("GET")
	r.HandleFunc("/movies/upcoming", h.list("upcoming", h.catalog.Upcoming)).Methods("GET")
	r.HandleFunc("/movies/top-rated", h.list("top_rated", h.catalog.TopRated)).Methods("GET")
	r.HandleFunc("/movies/now-playing", h.list("now_playing", h.catalog.NowPlaying)).Methods("GET")
	r.HandleFunc("/movies/trending", h.Trending).Methods("GET")
	r.HandleFunc("/movies/home", h.Home).Methods("GET")
	r.HandleFunc("/movies/{id:[0-9]+}", h.Details).Methods("GET")
	r.HandleFunc("/search/movies", h.Search).Methods("GET")
	r.HandleFunc("/genres", h.Genres).Methods("GET")
}

// MovieDetailsResponse is a movie's detail record plus the derived fields the detail view shows
type MovieDetailsResponse struct {
	*models.MovieDetails
	PosterURL   string              `json:"poster_url,omitempty"`
	BackdropURL string              `json:"backdrop_url,omitempty"`
	DirectedBy  []string            `json:"directed_by,omitempty"`
	TopCast     []models.CastMember `json:"top_cast,omitempty"`
	Trailer     *models.Video       `json:"trailer,omitempty"`
}

func (h *MovieHandler) lang(r *http.Request) string {
	return request.Language(r, h.defaultLang)
}

func (h *MovieHandler) list(name string, fetch pageFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParam(r)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		result, err := fetch(r.Context(), page, h.lang(r))
		if err != nil {
			h.catalogError(w, name, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// trendingQuery is the query string of GET /movies/trending
type trendingQuery struct {
	TimeWindow string `query:"time_window" validate:"omitempty,time_window"`
}

// Trending serves GET /movies/trending?time_window=day|week
func (h *MovieHandler) Trending(w http.ResponseWriter, r *http.Request) {
	q := trendingQuery{TimeWindow: r.URL.Query().Get("time_window")}
	if err := validation.Validate.Struct(q); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Message(err))
		return
	}
	result, err := h.catalog.Trending(r.Context(), q.TimeWindow, h.lang(r))
	if err != nil {
		h.catalogError(w, "trending", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Home fetches the landing page sections concurrently. Any failing section fails the feed.
func (h *MovieHandler) Home(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r)
	var feed models.HomeFeed

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		page, err := h.catalog.Popular(ctx, 1, lang)
		if err == nil {
			feed.Popular = *page
		}
		return err
	})
	g.Go(func() error {
		page, err := h.catalog.Trending(ctx, tmdb.TimeWindowWeek, lang)
		if err == nil {
			feed.Trending = *page
		}
		return err
	})
	g.Go(func() error {
		page, err := h.catalog.Upcoming(ctx, 1, lang)
		if err == nil {
			feed.Upcoming = *page
		}
		return err
	})

	if err := g.Wait(); err != nil {
		h.catalogError(w, "home", err)
		return
	}
	respondJSON(w, http.StatusOK, feed)
}

// Details serves GET /movies/{id}
func (h *MovieHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid movie ID")
		return
	}

	details, err := h.catalog.Details(r.Context(), id, h.lang(r))
	if err != nil {
		h.catalogError(w, "details", err)
		return
	}

	respondJSON(w, http.StatusOK, MovieDetailsResponse{
		MovieDetails: details,
		PosterURL:    tmdb.ImageURL(details.PosterPath, ""),
		BackdropURL:  tmdb.ImageURL(details.BackdropPath, "original"),
		DirectedBy:   details.Directors(),
		TopCast:      details.TopCast(topCastSize),
		Trailer:      details.Trailer(),
	})
}

// Search serves GET /search/movies?query=&page=
func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := pageParam(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	query := r.URL.Query().Get("query")
	h.log.Debug("catalog_search", zap.String("query", logger.SanitizeQuery(query)), zap.Int("page", page))
	result, err := h.catalog.Search(r.Context(), query, page, h.lang(r))
	if err != nil {
		h.catalogError(w, "search", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Genres serves GET /genres
func (h *MovieHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context(), h.lang(r))
	if err != nil {
		h.catalogError(w, "genres", err)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	respondJSON(w, http.StatusOK, genres)
}

// catalogError maps catalog failures to responses
func (h *MovieHandler) catalogError(w http.ResponseWriter, section string, err error) {
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Movie not found")
		return
	case errors.Is(err, tmdb.ErrEmptyQuery):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Search query is required")
		return
	case errors.Is(err, tmdb.ErrInvalidTimeWindow):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "time_window must be day or week")
		return
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("catalog_request_timeout", zap.String("section", section))
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "Movie catalog did not respond in time")
		return
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		return
	}

	var apiErr *tmdb.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		h.log.Warn("catalog_rate_limited", zap.String("section", section))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Movie catalog is busy, try again shortly")
		return
	}

	h.log.Error("catalog_request_failed", zap.String("section", section), zap.String("error", logger.SanitizeError(err)))
	respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Failed to fetch movies")
}
