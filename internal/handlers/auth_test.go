package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benvon/moviebox/internal/auth"
	"github.com/benvon/moviebox/internal/models"
	"github.com/gorilla/mux"
)

type fakeAuthService struct {
	err         error
	session     *models.Session
	gotRegister auth.RegisterInput
	gotEmail    string
	gotPassword string
	gotToken    string
	gotState    string
	gotCode     string
	loggedOut   string
	resetFor    string
	resent      bool
	consentURL  string
}

func (f *fakeAuthService) sessionOrErr() (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAuthService) Register(_ context.Context, in auth.RegisterInput) (*models.Session, error) {
	f.gotRegister = in
	return f.sessionOrErr()
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (*models.Session, error) {
	f.gotEmail, f.gotPassword = email, password
	return f.sessionOrErr()
}

func (f *fakeAuthService) SignInWithGoogle(_ context.Context, idToken string) (*models.Session, error) {
	f.gotToken = idToken
	return f.sessionOrErr()
}

func (f *fakeAuthService) BeginGoogleLogin(context.Context) (string, error) {
	return f.consentURL, f.err
}

func (f *fakeAuthService) CompleteGoogleLogin(_ context.Context, state, code string) (*models.Session, error) {
	f.gotState, f.gotCode = state, code
	return f.sessionOrErr()
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.loggedOut = token
	return f.err
}

func (f *fakeAuthService) RequestPasswordReset(_ context.Context, email string) error {
	f.resetFor = email
	return f.err
}

func (f *fakeAuthService) ResetPassword(_ context.Context, token, newPassword string) error {
	f.gotToken, f.gotPassword = token, newPassword
	return f.err
}

func (f *fakeAuthService) VerifyEmail(_ context.Context, token string) error {
	f.gotToken = token
	return f.err
}

func (f *fakeAuthService) ResendVerification(context.Context, *models.User) error {
	f.resent = true
	return f.err
}

func (f *fakeAuthService) UpdateProfile(_ context.Context, user *models.User, upd auth.ProfileUpdate) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if upd.DisplayName != nil {
		user.DisplayName = upd.DisplayName
	}
	return user, nil
}

func newAuthRouter(svc *fakeAuthService, callbackURL string) *mux.Router {
	r := mux.NewRouter()
	h := NewAuthHandler(svc, callbackURL, nil)
	h.RegisterCredentialRoutes(r.PathPrefix("/auth").Subrouter())
	h.RegisterSessionRoutes(r.PathPrefix("/auth").Subrouter())
	return r
}

func testSession() *models.Session {
	return &models.Session{
		Token:     "tok-123",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:      models.UserProfile{UID: "u1", Email: "ada@example.com"},
	}
}

func TestAuthHandler_Register(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{session: testSession()}
	w := httptest.NewRecorder()
	newAuthRouter(svc, "").ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/register", RegisterRequest{
		Email: "ada@example.com", Password: "secret1", DisplayName: "Ada",
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var session models.Session
	decodeData(t, decodeEnvelope(t, w), &session)
	if session.Token != "tok-123" || session.User.Email != "ada@example.com" {
		t.Errorf("Unexpected session %+v", session)
	}
	if svc.gotRegister.DisplayName != "Ada" || svc.gotRegister.Password != "secret1" {
		t.Errorf("Service got %+v", svc.gotRegister)
	}
}

func TestAuthHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"wrong password", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"email taken", auth.ErrEmailInUse, http.StatusConflict},
		{"weak password", auth.ErrWeakPassword, http.StatusBadRequest},
		{"bad email", auth.ErrInvalidEmail, http.StatusBadRequest},
		{"google disabled", auth.ErrGoogleDisabled, http.StatusServiceUnavailable},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			newAuthRouter(&fakeAuthService{err: tt.err}, "").ServeHTTP(w,
				newTestRequest(http.MethodPost, "/auth/login", LoginRequest{Email: "a@b.c", Password: "x"}))
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success || env.Message == "" {
				t.Errorf("Expected error envelope, got %+v", env)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(env.Message, "db down") {
				t.Error("Internal error detail leaked to client")
			}
		})
	}
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{session: testSession()}
	w := httptest.NewRecorder()
	newAuthRouter(svc, "").ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/login", map[string]string{"email": "a@b.c"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if svc.gotEmail != "" {
		t.Error("Service called despite invalid body")
	}
}

func TestAuthHandler_Google(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{session: testSession()}
	w := httptest.NewRecorder()
	newAuthRouter(svc, "").ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/google", GoogleRequest{IDToken: "id-token"}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if svc.gotToken != "id-token" {
		t.Errorf("Service got token %q", svc.gotToken)
	}
}

func TestAuthHandler_GoogleLogin(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{consentURL: "https://accounts.google.com/o/oauth2/auth?state=s"}
	w := httptest.NewRecorder()
	newAuthRouter(svc, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	var got map[string]string
	decodeData(t, decodeEnvelope(t, w), &got)
	if got["url"] != svc.consentURL {
		t.Errorf("Expected consent url, got %v", got)
	}
}

func TestAuthHandler_GoogleCallback(t *testing.T) {
	t.Parallel()

	t.Run("json without callback url", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{session: testSession()}
		w := httptest.NewRecorder()
		newAuthRouter(svc, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&code=c1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if svc.gotState != "s1" || svc.gotCode != "c1" {
			t.Errorf("Service got state %q code %q", svc.gotState, svc.gotCode)
		}
	})

	t.Run("redirect carries session in fragment", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{session: testSession()}
		w := httptest.NewRecorder()
		newAuthRouter(svc, "https://app.example.com/auth/callback").ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&code=c1", nil))
		if w.Code != http.StatusFound {
			t.Fatalf("Expected status 302, got %d", w.Code)
		}
		loc, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("Bad Location: %v", err)
		}
		frag, _ := url.ParseQuery(loc.Fragment)
		if frag.Get("token") != "tok-123" || frag.Get("expires_at") != "2030-01-01T00:00:00Z" {
			t.Errorf("Unexpected fragment %q", loc.Fragment)
		}
	})

	t.Run("invalid state redirects with error", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{err: auth.ErrInvalidState}
		w := httptest.NewRecorder()
		newAuthRouter(svc, "https://app.example.com/auth/callback").ServeHTTP(w,
			httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=bad&code=c1", nil))
		if !strings.HasSuffix(w.Header().Get("Location"), "#error=invalid_state") {
			t.Errorf("Unexpected Location %q", w.Header().Get("Location"))
		}
	})

	t.Run("consent denied", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{}
		w := httptest.NewRecorder()
		newAuthRouter(svc, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
		if svc.gotState != "" {
			t.Error("Service called after consent was denied")
		}
	})
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{}
	router := newAuthRouter(svc, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/password-reset", PasswordResetRequest{Email: "nobody@example.com"}))
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if svc.resetFor != "nobody@example.com" {
		t.Errorf("Reset requested for %q", svc.resetFor)
	}

	svc.err = auth.ErrInvalidToken
	w = httptest.NewRecorder()
	router.ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/password-reset/confirm", PasswordResetConfirmRequest{Token: "t", Password: "newpass"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for used token, got %d", w.Code)
	}
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	t.Parallel()

	svc := &fakeAuthService{}
	w := httptest.NewRecorder()
	newAuthRouter(svc, "").ServeHTTP(w, newTestRequest(http.MethodPost, "/auth/verify-email", VerifyEmailRequest{Token: "vt"}))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if svc.gotToken != "vt" {
		t.Errorf("Service got token %q", svc.gotToken)
	}
}

func TestAuthHandler_SessionRoutes(t *testing.T) {
	t.Parallel()

	user := testUser()

	t.Run("me", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		newAuthRouter(&fakeAuthService{}, "").ServeHTTP(w, withUser(httptest.NewRequest(http.MethodGet, "/auth/me", nil), user))
		var profile models.UserProfile
		decodeData(t, decodeEnvelope(t, w), &profile)
		if profile.UID != user.ID.String() || profile.Email != user.Email {
			t.Errorf("Unexpected profile %+v", profile)
		}
	})

	t.Run("me without user", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		newAuthRouter(&fakeAuthService{}, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
	})

	t.Run("update profile", func(t *testing.T) {
		t.Parallel()
		name := "Countess"
		w := httptest.NewRecorder()
		req := withUser(newTestRequest(http.MethodPatch, "/auth/me", UpdateProfileRequest{DisplayName: &name}), testUser())
		newAuthRouter(&fakeAuthService{}, "").ServeHTTP(w, req)
		var profile models.UserProfile
		decodeData(t, decodeEnvelope(t, w), &profile)
		if profile.DisplayName == nil || *profile.DisplayName != "Countess" {
			t.Errorf("Unexpected profile %+v", profile)
		}
	})

	t.Run("bad photo url", func(t *testing.T) {
		t.Parallel()
		photo := "ftp://example.com/a.png"
		w := httptest.NewRecorder()
		req := withUser(newTestRequest(http.MethodPatch, "/auth/me", UpdateProfileRequest{PhotoURL: &photo}), testUser())
		newAuthRouter(&fakeAuthService{err: auth.ErrInvalidPhotoURL}, "").ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("logout revokes bearer token", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{}
		req := withUser(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), user)
		req.Header.Set("Authorization", "Bearer tok-123")
		w := httptest.NewRecorder()
		newAuthRouter(svc, "").ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		if svc.loggedOut != "tok-123" {
			t.Errorf("Revoked %q", svc.loggedOut)
		}
	})

	t.Run("resend verification", func(t *testing.T) {
		t.Parallel()
		svc := &fakeAuthService{}
		w := httptest.NewRecorder()
		newAuthRouter(svc, "").ServeHTTP(w, withUser(httptest.NewRequest(http.MethodPost, "/auth/verify-email/resend", nil), user))
		if w.Code != http.StatusAccepted || !svc.resent {
			t.Errorf("Expected queued verification, got %d resent=%v", w.Code, svc.resent)
		}
	})
}
