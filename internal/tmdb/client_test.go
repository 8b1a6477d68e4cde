package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, cache Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Cache: cache, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewClient(Options{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestClient_ListEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		call     func(c *Client) error
		wantPath string
		wantPage string
	}{
		{"popular", func(c *Client) error { _, err := c.Popular(context.Background(), 2, ""); return err }, "/movie/popular", "2"},
		{"upcoming", func(c *Client) error { _, err := c.Upcoming(context.Background(), 0, ""); return err }, "/movie/upcoming", "1"},
		{"top rated", func(c *Client) error { _, err := c.TopRated(context.Background(), 900, ""); return err }, "/movie/top_rated", "500"},
		{"now playing", func(c *Client) error { _, err := c.NowPlaying(context.Background(), 3, ""); return err }, "/movie/now_playing", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %q, want %q", r.URL.Path, tt.wantPath)
				}
				q := r.URL.Query()
				if q.Get("api_key") != "k" {
					t.Errorf("api_key = %q", q.Get("api_key"))
				}
				if q.Get("page") != tt.wantPage {
					t.Errorf("page = %q, want %q", q.Get("page"), tt.wantPage)
				}
				if q.Get("language") != DefaultLanguage {
					t.Errorf("language = %q", q.Get("language"))
				}
				_, _ = w.Write([]byte(`{"page":1,"results":[{"id":1,"title":"A"}],"total_pages":1,"total_results":1}`))
			}, nil)
			if err := tt.call(c); err != nil {
				t.Fatalf("call error = %v", err)
			}
		})
	}
}

func TestClient_Trending(t *testing.T) {
	t.Parallel()
	var gotPath atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"page":1,"results":[],"total_pages":1,"total_results":0}`))
	}, nil)

	if _, err := c.Trending(context.Background(), "", "de-DE"); err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if got := gotPath.Load(); got != "/trending/movie/week" {
		t.Errorf("default window path = %v", got)
	}
	if _, err := c.Trending(context.Background(), TimeWindowDay, ""); err != nil {
		t.Fatalf("Trending(day) error = %v", err)
	}
	if got := gotPath.Load(); got != "/trending/movie/day" {
		t.Errorf("day window path = %v", got)
	}
	if _, err := c.Trending(context.Background(), "month", ""); !errors.Is(err, ErrInvalidTimeWindow) {
		t.Errorf("Trending(month) error = %v, want ErrInvalidTimeWindow", err)
	}
}

func TestClient_Search(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("query"); got != "blade runner" {
			t.Errorf("query = %q", got)
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":78,"title":"Blade Runner"}],"total_pages":1,"total_results":1}`))
	}, nil)

	page, err := c.Search(context.Background(), "  blade runner ", 1, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].ID != 78 {
		t.Errorf("Search() results = %+v", page.Results)
	}

	if _, err := c.Search(context.Background(), "   ", 1, ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank Search() error = %v, want ErrEmptyQuery", err)
	}
	if calls.Load() != 1 {
		t.Errorf("catalog called %d times, want 1", calls.Load())
	}
}

func TestClient_Details(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/movie/404" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
			return
		}
		if got := r.URL.Query().Get("append_to_response"); got != "credits,videos,similar" {
			t.Errorf("append_to_response = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":603,"title":"The Matrix","runtime":136,
			"credits":{"cast":[{"id":6384,"name":"Keanu Reeves","character":"Neo"}],"crew":[]},
			"similar":{"page":1,"results":[{"id":604,"title":"The Matrix Reloaded"}],"total_pages":1,"total_results":1}}`))
	}, nil)

	d, err := c.Details(context.Background(), 603, "")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if d.Title != "The Matrix" || d.Runtime != 136 {
		t.Errorf("Details() = %+v", d.Movie)
	}
	if cast := d.TopCast(5); len(cast) != 1 || cast[0].Name != "Keanu Reeves" {
		t.Errorf("TopCast() = %+v", cast)
	}
	if d.Similar == nil || len(d.Similar.Results) != 1 {
		t.Errorf("Similar = %+v", d.Similar)
	}

	_, err = c.Details(context.Background(), 404, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Details(404) error = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, "could not be found") {
		t.Errorf("APIError = %+v", apiErr)
	}

	if _, err := c.Details(context.Background(), 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Details(0) error = %v, want ErrNotFound", err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key"}`))
	}, nil)

	_, err := c.Popular(context.Background(), 1, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid API key" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("401 must not match ErrNotFound")
	}
}

func TestClient_Genres(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":35,"name":"Comedy"}]}`))
	}, nil)
	genres, err := c.Genres(context.Background(), "")
	if err != nil {
		t.Fatalf("Genres() error = %v", err)
	}
	if len(genres) != 2 || genres[0].Name != "Action" {
		t.Errorf("Genres() = %+v", genres)
	}
}

func TestClient_Cache(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	cache := newMemCache()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":1,"title":"A"}],"total_pages":3,"total_results":50}`))
	}, cache)

	for i := 0; i < 3; i++ {
		page, err := c.Popular(context.Background(), 1, "en-US")
		if err != nil {
			t.Fatalf("Popular() error = %v", err)
		}
		if page.TotalPages != 3 {
			t.Errorf("TotalPages = %d", page.TotalPages)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("catalog called %d times, want 1", calls.Load())
	}
	for key := range cache.data {
		if strings.Contains(key, "api_key") {
			t.Errorf("cache key %q leaks the API key", key)
		}
		if !strings.HasPrefix(key, "catalog:/movie/popular?") {
			t.Errorf("cache key = %q", key)
		}
	}

	if _, err := c.Popular(context.Background(), 2, "en-US"); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("different page should miss the cache, calls = %d", calls.Load())
	}
}

func TestClient_CorruptCacheEntryIsReplaced(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	cache := newMemCache()
	const fresh = `{"page":1,"results":[{"id":7,"title":"Fresh"}],"total_pages":1}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(fresh))
	}, cache)
	if _, err := c.Popular(context.Background(), 1, "en-US"); err != nil {
		t.Fatal(err)
	}

	// valid JSON with a mistyped field decodes partially before failing
	cache.mu.Lock()
	for key := range cache.data {
		cache.data[key] = []byte(`{"total_results":999,"total_pages":42,"results":"oops"}`)
	}
	cache.mu.Unlock()

	page, err := c.Popular(context.Background(), 1, "en-US")
	if err != nil {
		t.Fatalf("Popular() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("catalog called %d times, want 2", calls.Load())
	}
	if page.TotalResults != 0 || page.TotalPages != 1 || len(page.Results) != 1 || page.Results[0].Title != "Fresh" {
		t.Errorf("page = %+v, stale fields from the corrupt entry survived", page)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	for key, v := range cache.data {
		if string(v) != fresh {
			t.Errorf("cache entry %q = %s, want the fresh body", key, v)
		}
	}
}

func TestClient_CacheFailureBypassed(t *testing.T) {
	t.Parallel()
	cache := newMemCache()
	cache.err = errors.New("redis down")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[],"total_pages":1,"total_results":0}`))
	}, cache)
	if _, err := c.Popular(context.Background(), 1, ""); err != nil {
		t.Errorf("Popular() with failing cache error = %v", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Popular(ctx, 1, ""); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestImageURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path, size, want string
	}{
		{"", "w500", ""},
		{"/abc.jpg", "", "https://image.tmdb.org/t/p/w500/abc.jpg"},
		{"/abc.jpg", "original", "https://image.tmdb.org/t/p/original/abc.jpg"},
		{"abc.jpg", "w185", "https://image.tmdb.org/t/p/w185/abc.jpg"},
	}
	for _, tt := range tests {
		if got := ImageURL(tt.path, tt.size); got != tt.want {
			t.Errorf("ImageURL(%q, %q) = %q, want %q", tt.path, tt.size, got, tt.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	t.Parallel()
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 250: 250, 500: 500, 501: 500} {
		if got := ClampPage(in); got != want {
			t.Errorf("ClampPage(%d) = %d, want %d", in, got, want)
		}
	}
}
