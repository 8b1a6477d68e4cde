// Package tmdb is a read-only client for The Movie Database v3 REST API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public TMDB v3 endpoint
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// ImageBaseURL serves posters, backdrops and profile pictures
	ImageBaseURL = "https://image.tmdb.org/t/p"
	// DefaultImageSize is used by ImageURL when no size is given
	DefaultImageSize = "w500"
	// DefaultLanguage is sent when the caller passes an empty language
	DefaultLanguage = "en-US"
	// MaxPage is the highest page TMDB serves for list endpoints
	MaxPage = 500

	cacheKeyPrefix  = "catalog:"
	maxErrorBody    = 64 << 10
	detailsAppendix = "credits,videos,similar"
)

// Time windows accepted by Trending
const (
	TimeWindowDay  = "day"
	TimeWindowWeek = "week"
)

// Options configures a Client
type Options struct {
	APIKey     string
	BaseURL    string
	RPS        float64
	CacheTTL   time.Duration
	Cache      Cache
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the catalog with throttling and a read-through cache
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	cache    Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

// NewClient creates a catalog client. A nil Cache disables caching.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("tmdb: API key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("tmdb: invalid base URL: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	limit := rate.Inf
	burst := 1
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		burst = max(1, int(opts.RPS))
	}
	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  base,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		log:      logger.OrNop(opts.Logger),
	}, nil
}

// Popular returns a page of currently popular movies
func (c *Client) Popular(ctx context.Context, page int, lang string) (*models.MoviePage, error) {
	return c.list(ctx, "/movie/popular", page, lang)
}

// Upcoming returns a page of movies about to be released
func (c *Client) Upcoming(ctx context.Context, page int, lang string) (*models.MoviePage, error) {
	return c.list(ctx, "/movie/upcoming", page, lang)
}

// TopRated returns a page of the highest rated movies
func (c *Client) TopRated(ctx context.Context, page int, lang string) (*models.MoviePage, error) {
	return c.list(ctx, "/movie/top_rated", page, lang)
}

// NowPlaying returns a page of movies in theatres
func (c *Client) NowPlaying(ctx context.Context, page int, lang string) (*models.MoviePage, error) {
	return c.list(ctx, "/movie/now_playing", page, lang)
}

// Trending returns the movies trending over window ("day" or "week"; empty means week)
func (c *Client) Trending(ctx context.Context, window, lang string) (*models.MoviePage, error) {
	switch window {
	case "":
		window = TimeWindowWeek
	case TimeWindowDay, TimeWindowWeek:
	default:
		return nil, ErrInvalidTimeWindow
	}
	var out models.MoviePage
	if err := c.get(ctx, "/trending/movie/"+window, languageQuery(lang), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns a page of movies whose title matches query
func (c *Client) Search(ctx context.Context, query string, page int, lang string) (*models.MoviePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	q := languageQuery(lang)
	q.Set("query", query)
	q.Set("page", strconv.Itoa(ClampPage(page)))
	var out models.MoviePage
	if err := c.get(ctx, "/search/movie", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Details returns a movie with credits, videos and similar titles appended
func (c *Client) Details(ctx context.Context, id int, lang string) (*models.MovieDetails, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	q := languageQuery(lang)
	q.Set("append_to_response", detailsAppendix)
	var out models.MovieDetails
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Genres returns the movie genre list
func (c *Client) Genres(ctx context.Context, lang string) ([]models.Genre, error) {
	var out struct {
		Genres []models.Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/movie/list", languageQuery(lang), &out); err != nil {
		return nil, err
	}
	return out.Genres, nil
}

// ImageURL builds an image URL for path at size. Empty paths yield "".
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = DefaultImageSize
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return ImageBaseURL + "/" + size + path
}

// ClampPage keeps page within 1..MaxPage
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

func (c *Client) list(ctx context.Context, path string, page int, lang string) (*models.MoviePage, error) {
	q := languageQuery(lang)
	q.Set("page", strconv.Itoa(ClampPage(page)))
	var out models.MoviePage
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func languageQuery(lang string) url.Values {
	if lang == "" {
		lang = DefaultLanguage
	}
	return url.Values{"language": []string{lang}}
}

// get fetches path with q and decodes the body into out, consulting the cache first
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	key := cacheKeyPrefix + path + "?" + q.Encode()

	if c.cache != nil && c.cacheTTL > 0 {
		body, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			if err := json.Unmarshal(body, out); err == nil {
				return nil
			}
			// a failed decode can leave fields set; the fresh body must start from zero
			reflect.ValueOf(out).Elem().SetZero()
			c.log.Warn("catalog_cache_entry_corrupt", zap.String("key", logger.SanitizeString(key, logger.MaxGeneralStringLength)))
		case !errors.Is(err, ErrCacheMiss):
			c.log.Warn("catalog_cache_get_failed", zap.Error(err))
		}
	}

	body, err := c.fetch(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.log.Warn("catalog_cache_set_failed", zap.Error(err))
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog throttle: %w", err)
	}

	params := url.Values{}
	for k, v := range q {
		params[k] = v
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("catalog_request_failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("catalog request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("catalog_request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, apiErr)
		return nil, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	return body, nil
}
