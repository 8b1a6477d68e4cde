package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/savedmovies"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SavedStore is the per-account saved list
type SavedStore interface {
	List(ctx context.Context, uid string) ([]models.SavedMovie, error)
	Toggle(ctx context.Context, uid string, movie models.SavedMovie) (bool, []models.SavedMovie, error)
	Remove(ctx context.Context, uid string, id int) ([]models.SavedMovie, error)
	IsSaved(ctx context.Context, uid string, id int) (bool, error)
	Clear(ctx context.Context, uid string) error
}

// SavedHandler handles the signed-in user's saved movies
type SavedHandler struct {
	store SavedStore
	log   *zap.Logger
}

// NewSavedHandler creates a saved movies handler
func NewSavedHandler(store SavedStore, log *zap.Logger) *SavedHandler {
	return &SavedHandler{store: store, log: logger.OrNop(log)}
}

// RegisterRoutes registers saved list routes
// The router should already have the /me/saved-movies prefix and the auth middleware
func (h *SavedHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods("GET")
	r.HandleFunc("", h.Clear).Methods("DELETE")
	r.HandleFunc("/toggle", h.Toggle).Methods("POST")
	r.HandleFunc("/{id}", h.Get).Methods("GET")
	r.HandleFunc("/{id}", h.Remove).Methods("DELETE")
}

// ToggleResponse reports the saved state after a toggle together with the new list
type ToggleResponse struct {
	Saved  bool                `json:"saved"`
	Movies []models.SavedMovie `json:"movies"`
}

// SavedStatus reports whether a single movie is saved
type SavedStatus struct {
	ID    int  `json:"id"`
	Saved bool `json:"saved"`
}

// List handles GET /me/saved-movies
func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}
	list, err := h.store.List(r.Context(), uid)
	if err != nil {
		h.savedError(w, "list", uid, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(list))
}

// Toggle handles POST /me/saved-movies/toggle
func (h *SavedHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}
	var movie models.SavedMovie
	if !decodeJSON(w, r, &movie) {
		return
	}
	saved, list, err := h.store.Toggle(r.Context(), uid, movie)
	if err != nil {
		h.savedError(w, "toggle", uid, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponse{Saved: saved, Movies: nonNil(list)})
}

// Get handles GET /me/saved-movies/{id}
func (h *SavedHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	saved, err := h.store.IsSaved(r.Context(), uid, id)
	if err != nil {
		h.savedError(w, "get", uid, err)
		return
	}
	respondJSON(w, http.StatusOK, SavedStatus{ID: id, Saved: saved})
}

// Remove handles DELETE /me/saved-movies/{id}
func (h *SavedHandler) Remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := movieID(w, r)
	if !ok {
		return
	}
	list, err := h.store.Remove(r.Context(), uid, id)
	if err != nil {
		h.savedError(w, "remove", uid, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(list))
}

// Clear handles DELETE /me/saved-movies
func (h *SavedHandler) Clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := uidFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.store.Clear(r.Context(), uid); err != nil {
		h.savedError(w, "clear", uid, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func movieID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid movie ID")
		return 0, false
	}
	return id, true
}

func nonNil(list []models.SavedMovie) []models.SavedMovie {
	if list == nil {
		return []models.SavedMovie{}
	}
	return list
}

func (h *SavedHandler) savedError(w http.ResponseWriter, op, uid string, err error) {
	switch {
	case errors.Is(err, savedmovies.ErrInvalidMovie):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, savedmovies.ErrNoUser):
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	case errors.Is(err, savedmovies.ErrConflict):
		respondJSONError(w, http.StatusConflict, "Conflict", "Saved list is being modified, try again")
	default:
		h.log.Error("saved_movies_operation_failed",
			zap.String("operation", op),
			zap.String("user_id", logger.SanitizeUserID(uid)),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update saved movies")
	}
}
