package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/google/uuid"
)

func TestSessionManager_IssueVerifyRevoke(t *testing.T) {
	t.Parallel()
	reg := newMemEphemeral()
	m := NewSessionManager(testSecret, time.Hour, reg)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}
	ctx := context.Background()

	sess, err := m.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if sess.User.UID != user.ID.String() || sess.Token == "" {
		t.Errorf("Issue() session = %+v", sess)
	}
	if d := time.Until(sess.ExpiresAt); d < 59*time.Minute || d > time.Hour {
		t.Errorf("ExpiresAt in %v, want about 1h", d)
	}

	claims, err := m.Verify(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != user.ID.String() || claims.SessionID == "" {
		t.Errorf("claims = %+v", claims)
	}
	if _, ok := reg.data["session:"+claims.SessionID]; !ok {
		t.Error("session not registered under session:<jti>")
	}

	if err := m.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := m.Verify(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Verify() after revoke error = %v, want ErrInvalidSession", err)
	}
	if err := m.Revoke(ctx, sess.Token); err != nil {
		t.Errorf("second Revoke() error = %v", err)
	}
}

func TestSessionManager_RejectsForeignAndExpiredTokens(t *testing.T) {
	t.Parallel()
	reg := newMemEphemeral()
	user := &models.User{ID: uuid.New()}
	ctx := context.Background()

	other := NewSessionManager("ffffffffffffffffffffffffffffffff", time.Hour, reg)
	foreign, err := other.Issue(ctx, user)
	if err != nil {
		t.Fatal(err)
	}

	m := NewSessionManager(testSecret, time.Hour, reg)
	if _, err := m.Verify(ctx, foreign.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Verify(foreign) error = %v, want ErrInvalidSession", err)
	}

	past := NewSessionManager(testSecret, time.Minute, reg)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := past.Issue(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(ctx, old.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Verify(expired) error = %v, want ErrInvalidSession", err)
	}

	if _, err := m.Verify(ctx, "garbage"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Verify(garbage) error = %v", err)
	}
}

func TestSessionManager_RegistryFailure(t *testing.T) {
	t.Parallel()
	reg := newMemEphemeral()
	reg.err = errors.New("redis down")
	m := NewSessionManager(testSecret, time.Hour, reg)
	if _, err := m.Issue(context.Background(), &models.User{ID: uuid.New()}); err == nil {
		t.Error("Issue() with failing registry should error")
	}
}

func TestPasswordRules(t *testing.T) {
	t.Parallel()
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"12345", true},
		{"123456", false},
		{"pässwö", false},
		{string(make([]byte, 73)), true},
	}
	for _, tt := range tests {
		if err := ValidatePassword(tt.password); (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(len %d) error = %v, wantErr %v", len(tt.password), err, tt.wantErr)
		}
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse") || CheckPassword(hash, "wrong horse") {
		t.Error("CheckPassword mismatch")
	}
}

func TestHashToken(t *testing.T) {
	t.Parallel()
	a, err := newOpaqueToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := newOpaqueToken()
	if a == b {
		t.Error("tokens should be random")
	}
	if hashToken(a) == a || len(hashToken(a)) != 64 || hashToken(a) != hashToken(a) {
		t.Error("hashToken should be a stable sha256 hex digest")
	}
}
