package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/benvon/moviebox/internal/models"
)

// Register creates an account and adopts the returned session
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password, "display_name": displayName}
	return c.startSession(ctx, "/auth/register", body)
}

// Login signs in with email and password and adopts the returned session
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return c.startSession(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

// LoginWithGoogle exchanges a Google ID token for a session
func (c *Client) LoginWithGoogle(ctx context.Context, idToken string) (*models.Session, error) {
	return c.startSession(ctx, "/auth/google", map[string]string{"id_token": idToken})
}

// GoogleConsentURL returns the URL that starts the browser sign-in flow
func (c *Client) GoogleConsentURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/google/login", nil, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) startSession(ctx context.Context, path string, body any) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, path, nil, body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// Logout revokes the current session. The local token is dropped even when
// the server no longer knows it.
func (c *Client) Logout(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.SetToken("")
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	return nil
}

// Me returns the signed-in user's profile
func (c *Client) Me(ctx context.Context) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes the non-nil profile fields
func (c *Client) UpdateProfile(ctx context.Context, displayName, photoURL *string) (*models.UserProfile, error) {
	body := map[string]*string{}
	if displayName != nil {
		body["display_name"] = displayName
	}
	if photoURL != nil {
		body["photo_url"] = photoURL
	}
	var p models.UserProfile
	if err := c.do(ctx, http.MethodPatch, "/auth/me", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RequestPasswordReset asks for a reset link to be mailed to email
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", nil, map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password using a mailed token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/password-reset/confirm", nil, body, nil)
}

// VerifyEmail confirms an address using a mailed token
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email", nil, map[string]string{"token": token}, nil)
}

// ResendVerification queues a new verification e-mail for the signed-in user
func (c *Client) ResendVerification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email/resend", nil, nil, nil)
}

// SavedMovies returns the signed-in user's saved list
func (c *Client) SavedMovies(ctx context.Context) ([]models.SavedMovie, error) {
	var list []models.SavedMovie
	if err := c.do(ctx, http.MethodGet, "/me/saved-movies", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ToggleSaved adds movie to the saved list or removes it when present
func (c *Client) ToggleSaved(ctx context.Context, movie models.SavedMovie) (bool, []models.SavedMovie, error) {
	var out struct {
		Saved  bool                `json:"saved"`
		Movies []models.SavedMovie `json:"movies"`
	}
	if err := c.do(ctx, http.MethodPost, "/me/saved-movies/toggle", nil, movie, &out); err != nil {
		return false, nil, err
	}
	return out.Saved, out.Movies, nil
}

// IsSaved reports whether id is on the saved list
func (c *Client) IsSaved(ctx context.Context, id int) (bool, error) {
	var out struct {
		Saved bool `json:"saved"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/saved-movies/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return false, err
	}
	return out.Saved, nil
}

// RemoveSaved drops id from the saved list
func (c *Client) RemoveSaved(ctx context.Context, id int) ([]models.SavedMovie, error) {
	var list []models.SavedMovie
	if err := c.do(ctx, http.MethodDelete, "/me/saved-movies/"+strconv.Itoa(id), nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ClearSaved empties the saved list
func (c *Client) ClearSaved(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/me/saved-movies", nil, nil, nil)
}

// Digest returns the AI summary of the saved list
func (c *Client) Digest(ctx context.Context, refresh bool) (*models.Digest, error) {
	var q url.Values
	if refresh {
		q = url.Values{"refresh": {"true"}}
	}
	var d models.Digest
	if err := c.do(ctx, http.MethodGet, "/me/digest", q, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
