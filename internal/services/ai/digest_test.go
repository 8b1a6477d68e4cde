package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/openai/openai-go/v3/option"
)

var saved = []models.SavedMovie{
	{ID: 27205, Title: "Inception", ReleaseDate: "2010-07-15", VoteAverage: 8.4, Overview: "A thief who steals secrets\nthrough dreams."},
	{ID: 157336, Title: "Interstellar", ReleaseDate: "2014-11-05", VoteAverage: 8.4},
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func fakeOpenAI(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	prompts := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		prompts = append(prompts, string(raw))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestOpenAIProvider_Digest(t *testing.T) {
	t.Parallel()
	content := `{"summary":"You like cerebral science fiction.","suggestions":[` +
		`{"title":"Arrival","year":"2016","reason":"Language and time"},` +
		`{"title":"inception","reason":"already saved"},` +
		`{"title":"  ","reason":"blank"},` +
		`{"title":"Primer","year":"2004","reason":"Time travel on a budget"}]}`
	srv, prompts := fakeOpenAI(t, http.StatusOK, completion(content))

	p := newOpenAIProvider("sk-test", srv.URL+"/v1", "", nil, false, option.WithMaxRetries(0))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	d, err := p.Digest(context.Background(), saved)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if d.Summary != "You like cerebral science fiction." {
		t.Errorf("Summary = %q", d.Summary)
	}
	if len(d.Suggestions) != 2 || d.Suggestions[0].Title != "Arrival" || d.Suggestions[1].Title != "Primer" {
		t.Errorf("Suggestions = %+v", d.Suggestions)
	}
	if d.MovieCount != 2 || d.Model != DefaultOpenAIModel || !d.GeneratedAt.Equal(fixed) {
		t.Errorf("metadata = %+v", d)
	}
	if len(*prompts) != 1 || !strings.Contains((*prompts)[0], "Interstellar (2014)") {
		t.Errorf("request did not include the list: %v", *prompts)
	}
}

func TestOpenAIProvider_DigestErrors(t *testing.T) {
	t.Parallel()

	if _, err := newOpenAIProvider("k", "http://127.0.0.1:1", "", nil, false).Digest(context.Background(), nil); !errors.Is(err, ErrNothingSaved) {
		t.Errorf("empty list error = %v", err)
	}

	srv, _ := fakeOpenAI(t, http.StatusOK, completion("I cannot help with that."))
	p := newOpenAIProvider("k", srv.URL+"/v1", "", nil, false, option.WithMaxRetries(0))
	if _, err := p.Digest(context.Background(), saved); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("prose response error = %v, want ErrMalformedResponse", err)
	}

	limited, _ := fakeOpenAI(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`)
	p = newOpenAIProvider("k", limited.URL+"/v1", "", nil, false, option.WithMaxRetries(0))
	_, err := p.Digest(context.Background(), saved)
	if !IsRateLimitError(err) {
		t.Fatalf("error = %v, want rate limit", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter == nil || *apiErr.RetryAfter != time.Minute {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestParseDigestResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantErr bool
		summary string
	}{
		{"plain json", `{"summary":"x","suggestions":[]}`, false, "x"},
		{"fenced json", "```json\n{\"summary\":\"y\"}\n```", false, "y"},
		{"no object", "nothing here", true, ""},
		{"empty summary", `{"summary":"  "}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := parseDigestResponse(tt.content, saved)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d.Summary != tt.summary {
				t.Errorf("Summary = %q", d.Summary)
			}
		})
	}
}

func TestBuildDigestPrompt_CapsLongLists(t *testing.T) {
	t.Parallel()
	movies := make([]models.SavedMovie, MaxMoviesInPrompt+7)
	for i := range movies {
		movies[i] = models.SavedMovie{ID: i + 1, Title: "Movie"}
	}
	prompt := buildDigestPrompt(movies)
	if got := strings.Count(prompt, "- Movie"); got != MaxMoviesInPrompt {
		t.Errorf("prompt lists %d movies, want %d", got, MaxMoviesInPrompt)
	}
	if !strings.Contains(prompt, "(and 7 older titles)") {
		t.Error("prompt does not mention the omitted titles")
	}
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (c *countingProvider) Digest(_ context.Context, movies []models.SavedMovie) (*models.Digest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &models.Digest{Summary: "taste", MovieCount: len(movies)}, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestDigestService_Caching(t *testing.T) {
	t.Parallel()
	provider := &countingProvider{}
	svc := NewDigestService(provider, &mapCache{data: map[string][]byte{}}, 0, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Digest(ctx, "user-1", saved, false); err != nil {
			t.Fatal(err)
		}
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times for an unchanged list, want 1", provider.calls)
	}

	if _, err := svc.Digest(ctx, "user-1", saved[:1], false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Digest(ctx, "user-2", saved, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Digest(ctx, "user-1", saved, true); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 4 {
		t.Errorf("provider calls = %d, want 4 (changed list, other user, refresh)", provider.calls)
	}

	if _, err := svc.Digest(ctx, "user-1", nil, false); !errors.Is(err, ErrNothingSaved) {
		t.Errorf("empty list error = %v", err)
	}
}

func TestSanitizeHelpers(t *testing.T) {
	t.Parallel()
	if got := SanitizeAPIKey("sk-1234567890abcd"); got != "sk-1"+RedactedValue+"abcd" {
		t.Errorf("SanitizeAPIKey() = %q", got)
	}
	if got := SanitizeAPIKey("short"); got != RedactedValue {
		t.Errorf("SanitizeAPIKey(short) = %q", got)
	}
	if got := SanitizePrompt("a\x00b", false); got != "ab" {
		t.Errorf("SanitizePrompt() = %q", got)
	}
	long := strings.Repeat("é", MaxPreviewLength)
	if got := SanitizeResponse(long, false); !strings.HasSuffix(got, "...") || len(got) > MaxPreviewLength+3 {
		t.Errorf("SanitizeResponse() length %d", len(got))
	}
	if HashUserID("a") == HashUserID("b") || len(HashUserID("a")) != 16 {
		t.Error("HashUserID() not a 16 char distinct hash")
	}
}
