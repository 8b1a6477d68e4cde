package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// MaxMoviesInPrompt caps how much of a long list is sent to the model
	MaxMoviesInPrompt = 50
	// MaxSuggestions is the number of suggestions kept from a response
	MaxSuggestions = 5

	maxOverviewInPrompt = 160
	systemPrompt        = "You are a film critic who describes a viewer's taste from their watchlist and recommends films they have not saved. Respond with valid JSON only."
)

// OpenAIProvider implements Provider using an OpenAI-compatible chat completions API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
	now       func() time.Time
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	return newOpenAIProvider(apiKey, baseURL, model, logger, debugMode)
}

func newOpenAIProvider(apiKey, baseURL, model string, log *zap.Logger, debugMode bool, extra ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	opts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	}, extra...)

	p := &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     model,
		logger:    logger.OrNop(log),
		debugMode: debugMode,
		now:       time.Now,
	}
	p.logger.Info("ai_provider_initialized",
		zap.String("model", model),
		zap.String("base_url", baseURL),
		zap.String("api_key", SanitizeAPIKey(apiKey)),
	)
	return p
}

// Digest asks the model to describe the taste behind movies and suggest a few more
func (p *OpenAIProvider) Digest(ctx context.Context, movies []models.SavedMovie) (*models.Digest, error) {
	if len(movies) == 0 {
		return nil, ErrNothingSaved
	}
	prompt := buildDigestPrompt(movies)

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "watchlist_digest"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("operation", "watchlist_digest"),
			zap.String("model", p.model),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("error", logger.SanitizeError(err)),
		)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to build digest: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to build digest: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}
	content := resp.Choices[0].Message.Content

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "watchlist_digest"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	digest, err := parseDigestResponse(content, movies)
	if err != nil {
		return nil, err
	}
	digest.MovieCount = len(movies)
	digest.Model = p.model
	digest.GeneratedAt = p.now().UTC()
	return digest, nil
}

// buildDigestPrompt lists the most recently saved titles, newest first
func buildDigestPrompt(movies []models.SavedMovie) string {
	var b strings.Builder
	b.WriteString("Here is my movie watchlist:\n")

	n := 0
	for i := len(movies) - 1; i >= 0 && n < MaxMoviesInPrompt; i-- {
		m := movies[i]
		fmt.Fprintf(&b, "- %s", SanitizePrompt(m.Title, false))
		if year := releaseYear(m.ReleaseDate); year != "" {
			fmt.Fprintf(&b, " (%s)", year)
		}
		if m.VoteAverage > 0 {
			fmt.Fprintf(&b, ", rated %.1f/10", m.VoteAverage)
		}
		if m.Overview != "" {
			fmt.Fprintf(&b, ": %s", sanitizeStringForLogging(strings.ReplaceAll(m.Overview, "\n", " "), maxOverviewInPrompt))
		}
		b.WriteByte('\n')
		n++
	}
	if len(movies) > n {
		fmt.Fprintf(&b, "(and %d older titles)\n", len(movies)-n)
	}

	fmt.Fprintf(&b, `
Describe my taste in two or three sentences, then suggest up to %d movies that are not in the list.
Respond with a JSON object of the form:
{"summary": "...", "suggestions": [{"title": "...", "year": "YYYY", "reason": "..."}]}`, MaxSuggestions)
	return b.String()
}

// parseDigestResponse decodes the model's JSON, tolerating prose around the object.
// Suggestions that repeat a saved title or lack a title are dropped.
func parseDigestResponse(content string, saved []models.SavedMovie) (*models.Digest, error) {
	var out struct {
		Summary     string              `json:"summary"`
		Suggestions []models.Suggestion `json:"suggestions"`
	}
	raw := []byte(content)
	if err := json.Unmarshal(raw, &out); err != nil {
		start := bytes.IndexByte(raw, '{')
		end := bytes.LastIndexByte(raw, '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err := json.Unmarshal(raw[start:end+1], &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}

	have := make(map[string]bool, len(saved))
	for _, m := range saved {
		have[strings.ToLower(strings.TrimSpace(m.Title))] = true
	}
	suggestions := make([]models.Suggestion, 0, MaxSuggestions)
	for _, s := range out.Suggestions {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" || have[strings.ToLower(s.Title)] {
			continue
		}
		s.Reason = strings.TrimSpace(s.Reason)
		suggestions = append(suggestions, s)
		if len(suggestions) == MaxSuggestions {
			break
		}
	}
	return &models.Digest{Summary: summary, Suggestions: suggestions}, nil
}

func releaseYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
