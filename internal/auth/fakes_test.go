package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/queue"
	"github.com/google/uuid"
)

type fakeUsers struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	updates int
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[uuid.UUID]*models.User{}} }

func clone(u *models.User) *models.User { c := *u; return &c }

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("failed to create user: %w", database.ErrDuplicate)
		}
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	f.users[u.ID] = clone(u)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return clone(u), nil
	}
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func (f *fakeUsers) GetByProviderID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ProviderID != nil && *u.ProviderID == id {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", database.ErrNotFound)
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return database.ErrNotFound
	}
	f.users[u.ID] = clone(u)
	f.updates++
	return nil
}

func (f *fakeUsers) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = &hash
	return nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.AccountToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{tokens: map[string]*models.AccountToken{}} }

func (f *fakeTokens) Create(_ context.Context, t *models.AccountToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *t
	f.tokens[t.TokenHash] = &c
	return nil
}

func (f *fakeTokens) Consume(_ context.Context, hash string, purpose models.TokenPurpose) (*models.AccountToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[hash]
	if !ok || t.Purpose != purpose || !t.Usable(time.Now()) {
		return nil, fmt.Errorf("account token: %w", database.ErrNotFound)
	}
	now := time.Now()
	t.UsedAt = &now
	c := *t
	return &c, nil
}

func (f *fakeTokens) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeTokens) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for hash, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, hash)
		}
	}
	return nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type memEphemeral struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemEphemeral() *memEphemeral { return &memEphemeral{data: map[string]string{}} }

func (m *memEphemeral) Put(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memEphemeral) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrMissing
	}
	return v, nil
}

func (m *memEphemeral) Take(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return v, nil
}

func (m *memEphemeral) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeMail struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (f *fakeMail) Enqueue(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeMail) last() *queue.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil
	}
	return f.jobs[len(f.jobs)-1]
}

type fakeGoogle struct {
	claims   map[string]*models.IDTokenClaims // id token -> claims
	codes    map[string]string                // code -> id token
	verifyFn func(string) (*models.IDTokenClaims, error)
}

func (g *fakeGoogle) VerifyIDToken(_ context.Context, tok string) (*models.IDTokenClaims, error) {
	if g.verifyFn != nil {
		return g.verifyFn(tok)
	}
	if c, ok := g.claims[tok]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("bad token")
}

func (g *fakeGoogle) AuthCodeURL(_ context.Context, state string) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
}

func (g *fakeGoogle) ExchangeCode(_ context.Context, code string) (string, error) {
	if tok, ok := g.codes[code]; ok {
		return tok, nil
	}
	return "", fmt.Errorf("bad code")
}

type harness struct {
	svc    *Service
	users  *fakeUsers
	tokens *fakeTokens
	states *memEphemeral
	mail   *fakeMail
	google *fakeGoogle
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newHarness() *harness {
	h := &harness{
		users:  newFakeUsers(),
		tokens: newFakeTokens(),
		states: newMemEphemeral(),
		mail:   &fakeMail{},
		google: &fakeGoogle{claims: map[string]*models.IDTokenClaims{}, codes: map[string]string{}},
	}
	h.svc = NewService(Options{
		Users:       h.users,
		Tokens:      h.tokens,
		Sessions:    NewSessionManager(testSecret, time.Hour, h.states),
		States:      h.states,
		Mail:        h.mail,
		Google:      h.google,
		LinkBaseURL: "https://movies.example.com/",
	})
	return h
}
