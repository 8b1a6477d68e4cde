package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/services/ai"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SavedLister reads a user's saved list
type SavedLister interface {
	List(ctx context.Context, uid string) ([]models.SavedMovie, error)
}

// Digester summarizes a saved list
type Digester interface {
	Digest(ctx context.Context, uid string, movies []models.SavedMovie, refresh bool) (*models.Digest, error)
}

// DigestHandler serves the AI watchlist digest
type DigestHandler struct {
	saved  SavedLister
	digest Digester
	log    *zap.Logger
}

// NewDigestHandler creates a digest handler
func NewDigestHandler(saved SavedLister, digest Digester, log *zap.Logger) *DigestHandler {
	return &DigestHandler{saved: saved, digest: digest, log: logger.OrNop(log)}
}

// RegisterRoutes registers the digest route on a /me router
func (h *DigestHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/digest", h.Digest).Methods("GET")
}

// Digest handles GET /me/digest[?refresh=true]
func (h *DigestHandler) Digest(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}

	refresh := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "refresh must be a boolean")
			return
		}
		refresh = v
	}

	movies, err := h.saved.List(r.Context(), uid)
	if err != nil {
		h.log.Error("digest_saved_list_failed", zap.String("user", ai.HashUserID(uid)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load saved movies")
		return
	}

	d, err := h.digest.Digest(r.Context(), uid, movies, refresh)
	if err != nil {
		h.digestError(w, uid, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *DigestHandler) digestError(w http.ResponseWriter, uid string, err error) {
	switch {
	case errors.Is(err, ai.ErrNothingSaved):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "Save some movies first")
		return
	case ai.IsQuotaError(err):
		h.log.Error("digest_quota_exhausted", zap.String("user", ai.HashUserID(uid)))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Digest is temporarily unavailable")
		return
	case ai.IsRateLimitError(err):
		var apiErr *ai.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter != nil {
			w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Seconds())))
		}
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "Digest rate limit reached, try again later")
		return
	}

	h.log.Error("digest_failed", zap.String("user", ai.HashUserID(uid)), zap.Error(err))
	respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Failed to generate digest")
}
