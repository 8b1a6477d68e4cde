package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type testIssuer struct {
	key     jwk.Key
	server  *httptest.Server
	fetches atomic.Int32
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	_ = key.Set(jwk.KeyIDKey, "test-kid")
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256)

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		t.Fatalf("PublicKeyOf: %v", err)
	}
	_ = pub.Set(jwk.KeyIDKey, "test-kid")
	_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal set: %v", err)
	}

	ti := &testIssuer{key: key}
	ti.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ti.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(ti.server.Close)
	return ti
}

func (ti *testIssuer) sign(t *testing.T, issuer, audience string, exp time.Time, extra map[string]any) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer(issuer).
		Subject("google-sub-1").
		Audience([]string{audience}).
		IssuedAt(time.Now().Add(-time.Minute)).
		Expiration(exp)
	for k, v := range extra {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, ti.key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func (ti *testIssuer) verifier() *Verifier {
	jwksURL := ti.server.URL
	return NewVerifier(NewJWKSManager(ti.server.Client()), &models.OIDCConfig{
		Issuer:   models.GoogleIssuer,
		ClientID: "client-123",
		JWKSUrl:  &jwksURL,
	})
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()
	ti := newTestIssuer(t)
	v := ti.verifier()
	hour := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid https issuer", ti.sign(t, models.GoogleIssuer, "client-123", hour, map[string]any{"email": "ada@example.com", "email_verified": true, "name": "Ada"}), false},
		{"valid bare issuer", ti.sign(t, "accounts.google.com", "client-123", hour, nil), false},
		{"wrong audience", ti.sign(t, models.GoogleIssuer, "someone-else", hour, nil), true},
		{"wrong issuer", ti.sign(t, "https://evil.example.com", "client-123", hour, nil), true},
		{"expired", ti.sign(t, models.GoogleIssuer, "client-123", time.Now().Add(-time.Hour), nil), true},
		{"garbage", "not.a.jwt", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIDToken) {
					t.Errorf("Verify() error = %v, want ErrInvalidIDToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Sub != "google-sub-1" || claims.Aud != "client-123" {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestVerifier_ExtractsProfileClaims(t *testing.T) {
	t.Parallel()
	ti := newTestIssuer(t)
	tok := ti.sign(t, models.GoogleIssuer, "client-123", time.Now().Add(time.Hour), map[string]any{
		"email":          "ada@example.com",
		"email_verified": "true",
		"name":           "Ada Lovelace",
		"picture":        "https://lh3.example.com/a.png",
	})
	claims, err := ti.verifier().Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Email != "ada@example.com" || !claims.EmailVerified || claims.Name != "Ada Lovelace" || claims.Picture == "" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWKSManager_Caches(t *testing.T) {
	t.Parallel()
	ti := newTestIssuer(t)
	m := NewJWKSManager(ti.server.Client())
	for i := 0; i < 3; i++ {
		if _, err := m.GetJWKS(context.Background(), ti.server.URL); err != nil {
			t.Fatalf("GetJWKS() error = %v", err)
		}
	}
	if got := ti.fetches.Load(); got != 1 {
		t.Errorf("JWKS fetched %d times, want 1", got)
	}
	m.Invalidate(ti.server.URL)
	if _, err := m.GetJWKS(context.Background(), ti.server.URL); err != nil {
		t.Fatal(err)
	}
	if got := ti.fetches.Load(); got != 2 {
		t.Errorf("JWKS fetched %d times after invalidate, want 2", got)
	}
}

func TestVerifier_UnknownKeyIDRefetches(t *testing.T) {
	t.Parallel()
	ti := newTestIssuer(t)
	v := ti.verifier()

	good := ti.sign(t, models.GoogleIssuer, "client-123", time.Now().Add(time.Hour), nil)
	if _, err := v.Verify(context.Background(), good); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if _, err := v.Verify(context.Background(), good); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got := ti.fetches.Load(); got != 1 {
		t.Fatalf("JWKS fetched %d times for a known kid, want 1", got)
	}

	hdrs := jws.NewHeaders()
	_ = hdrs.Set(jws.KeyIDKey, "rotated-kid")
	tok, err := jwt.NewBuilder().
		Issuer(models.GoogleIssuer).
		Subject("google-sub-1").
		Audience([]string{"client-123"}).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, ti.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(context.Background(), string(signed)); !errors.Is(err, ErrInvalidIDToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidIDToken", err)
	}
	if got := ti.fetches.Load(); got != 2 {
		t.Errorf("JWKS fetched %d times after an unknown kid, want 2", got)
	}
}

func TestJWKSManager_BadStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := NewJWKSManager(srv.Client()).GetJWKS(context.Background(), srv.URL); err == nil {
		t.Error("Expected error for 500 response")
	}
}

type fakeOIDCStore struct {
	cfg *models.OIDCConfig
	err error
}

func (f *fakeOIDCStore) GetByProvider(context.Context, string) (*models.OIDCConfig, error) {
	return f.cfg, f.err
}
