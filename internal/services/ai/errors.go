package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrNothingSaved is returned when a digest is requested for an empty list
	ErrNothingSaved = errors.New("saved list is empty")
	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = errors.New("no choices in response")
	// ErrMalformedResponse is returned when the model does not answer with the requested JSON
	ErrMalformedResponse = errors.New("malformed digest response")
)

// APIError represents an error from the AI provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "insufficient_quota") || strings.Contains(errStr, "billing")
}

// ExtractAPIError converts an SDK error into an APIError, or returns nil
func ExtractAPIError(err error) *APIError {
	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return nil
	}
	apiErr := &APIError{
		StatusCode: sdkErr.StatusCode,
		Message:    sdkErr.Message,
		Type:       sdkErr.Type,
		Code:       sdkErr.Code,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(sdkErr.StatusCode)
	}
	if sdkErr.StatusCode == http.StatusTooManyRequests {
		// Rate limits typically reset within a minute, quota only after billing changes
		retryAfter := time.Minute
		if sdkErr.Code == "insufficient_quota" {
			apiErr.IsPermanent = true
			retryAfter = time.Hour
		}
		apiErr.RetryAfter = &retryAfter
	}
	return apiErr
}
