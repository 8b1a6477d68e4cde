package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/moviebox/internal/auth"
	logpkg "github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/request"
	"go.uber.org/zap"
)

// Authenticator resolves a session token to its account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Auth requires a valid moviebox session bearer token and attaches the user to the request
func Auth(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logpkg.OrNop(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}
			token, ok := request.BearerToken(r)
			if !ok {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrInvalidSession):
				logger.Debug("session_rejected", zap.Error(err))
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired session", logger)
				return
			case err != nil:
				logger.Error("session_lookup_failed", zap.Error(err))
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to authenticate request", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}
