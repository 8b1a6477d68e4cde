package savedmovies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benvon/moviebox/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// maxTxRetries bounds optimistic transaction attempts on a contended key
	maxTxRetries = 25
	// txBackoffBase and txBackoffMax bound the jittered wait between attempts
	txBackoffBase = 2 * time.Millisecond
	txBackoffMax  = 50 * time.Millisecond
)

// ErrConflict is returned when a list kept changing under concurrent writers
var ErrConflict = errors.New("saved list modified concurrently")

// UpdateFunc computes the new list from the current one
type UpdateFunc func(current []models.SavedMovie) ([]models.SavedMovie, error)

// KV persists saved lists as JSON arrays under string keys
type KV interface {
	Load(ctx context.Context, key string) ([]models.SavedMovie, error)
	Update(ctx context.Context, key string, fn UpdateFunc) ([]models.SavedMovie, error)
	Delete(ctx context.Context, key string) error
}

// RedisKV stores saved lists in Redis, serializing writers with WATCH/MULTI
type RedisKV struct {
	client  *redis.Client
	retries int
	backoff func(attempt int) time.Duration
}

// NewRedisKV creates a Redis backed saved-list store
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client, retries: maxTxRetries, backoff: jitteredBackoff}
}

// jitteredBackoff picks a wait in [0, min(base*2^attempt, max)) so contending
// writers stop retrying in lockstep
func jitteredBackoff(attempt int) time.Duration {
	ceiling := txBackoffMax
	if attempt < 10 {
		ceiling = min(txBackoffBase<<attempt, txBackoffMax)
	}
	return rand.N(ceiling)
}

// Load returns the list under key; a missing key is an empty list
func (s *RedisKV) Load(ctx context.Context, key string) ([]models.SavedMovie, error) {
	return load(ctx, s.client, key)
}

// Update applies fn inside an optimistic transaction and returns the stored list
func (s *RedisKV) Update(ctx context.Context, key string, fn UpdateFunc) ([]models.SavedMovie, error) {
	var result []models.SavedMovie
	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode saved list: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		if wait := s.backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil, ErrConflict
}

// Delete removes the list under key
func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete saved list: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) ([]models.SavedMovie, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.SavedMovie{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load saved list: %w", err)
	}
	var list []models.SavedMovie
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode saved list: %w", err)
	}
	if list == nil {
		list = []models.SavedMovie{}
	}
	return list, nil
}

// MemoryKV is an in-process KV for tests and single-node development
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory store
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Load returns a copy of the list under key
func (m *MemoryKV) Load(_ context.Context, key string) ([]models.SavedMovie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decode(key)
}

// Update applies fn while holding the store lock
func (m *MemoryKV) Update(_ context.Context, key string, fn UpdateFunc) ([]models.SavedMovie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.decode(key)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	m.data[key] = raw
	return next, nil
}

// Delete removes key
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Raw exposes the stored bytes of key
func (m *MemoryKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok
}

func (m *MemoryKV) decode(key string) ([]models.SavedMovie, error) {
	raw, ok := m.data[key]
	if !ok {
		return []models.SavedMovie{}, nil
	}
	var list []models.SavedMovie
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.SavedMovie{}
	}
	return list, nil
}
