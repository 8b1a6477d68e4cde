package savedmovies

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benvon/moviebox/internal/models"
	"github.com/redis/go-redis/v9"
)

func newRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client), mr, client
}

func TestRedisKV_LoadUpdateDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, mr, _ := newRedisKV(t)

	list, err := kv.Load(ctx, Key("u1"))
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("Load(missing) = %v, %v; want empty list", list, err)
	}

	appendMovie := func(m models.SavedMovie) UpdateFunc {
		return func(current []models.SavedMovie) ([]models.SavedMovie, error) {
			return append(current, m), nil
		}
	}
	if _, err := kv.Update(ctx, Key("u1"), appendMovie(movie(603))); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := kv.Update(ctx, Key("u1"), appendMovie(movie(78)))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if want := []int{603, 78}; !equalInts(ids(got), want) {
		t.Errorf("Update() = %v, want %v", ids(got), want)
	}

	raw, err := mr.Get(Key("u1"))
	if err != nil {
		t.Fatalf("key not stored: %v", err)
	}
	if raw[0] != '[' {
		t.Errorf("stored value is not a JSON array: %s", raw)
	}
	if ttl := mr.TTL(Key("u1")); ttl != 0 {
		t.Errorf("saved list has TTL %v, want none", ttl)
	}

	if err := kv.Delete(ctx, Key("u1")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists(Key("u1")) {
		t.Error("key still present after Delete")
	}
}

func TestRedisKV_UpdateFuncErrorLeavesListUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, mr, _ := newRedisKV(t)
	if err := mr.Set(Key("u1"), `[{"id":603,"title":"The Matrix"}]`); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("rejected")
	_, err := kv.Update(ctx, Key("u1"), func([]models.SavedMovie) ([]models.SavedMovie, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want %v", err, boom)
	}
	if raw, _ := mr.Get(Key("u1")); raw != `[{"id":603,"title":"The Matrix"}]` {
		t.Errorf("list rewritten: %s", raw)
	}
}

func TestRedisKV_CorruptValue(t *testing.T) {
	t.Parallel()
	kv, mr, _ := newRedisKV(t)
	if err := mr.Set(Key("u1"), "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Load(context.Background(), Key("u1")); err == nil {
		t.Error("Expected decode error")
	}
}

func TestRedisKV_ConflictAfterRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, _, client := newRedisKV(t)
	kv.retries = 3
	var waits []int
	kv.backoff = func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}

	attempts := 0
	_, err := kv.Update(ctx, Key("u1"), func(current []models.SavedMovie) ([]models.SavedMovie, error) {
		attempts++
		// another writer lands between WATCH and EXEC every time
		if err := client.Set(ctx, Key("u1"), "[]", 0).Err(); err != nil {
			return nil, err
		}
		return append(current, movie(1)), nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Update() error = %v, want ErrConflict", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !equalInts(waits, []int{0, 1, 2}) {
		t.Errorf("backoff attempts = %v", waits)
	}
}

func TestRedisKV_BackoffHonoursContext(t *testing.T) {
	t.Parallel()
	kv, _, client := newRedisKV(t)
	kv.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := kv.Update(ctx, Key("u1"), func(current []models.SavedMovie) ([]models.SavedMovie, error) {
		if err := client.Set(context.Background(), Key("u1"), "[]", 0).Err(); err != nil {
			return nil, err
		}
		return current, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Update() error = %v, want deadline exceeded", err)
	}
}

func TestService_ConcurrentTogglesOnRedis(t *testing.T) {
	t.Parallel()
	kv, _, _ := newRedisKV(t)
	s := NewService(kv, nil)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, _, err := s.Toggle(context.Background(), "u1", movie(id)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Toggle() error = %v", err)
	}

	list, err := s.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != writers {
		t.Errorf("len(list) = %d, want %d", len(list), writers)
	}
	seen := make(map[int]bool)
	for _, m := range list {
		if seen[m.ID] {
			t.Errorf("duplicate id %d", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestJitteredBackoff(t *testing.T) {
	t.Parallel()
	for attempt := 0; attempt < 40; attempt++ {
		ceiling := txBackoffMax
		if attempt < 10 {
			ceiling = min(txBackoffBase<<attempt, txBackoffMax)
		}
		for i := 0; i < 20; i++ {
			if d := jitteredBackoff(attempt); d < 0 || d >= ceiling {
				t.Fatalf("jitteredBackoff(%d) = %v, want [0, %v)", attempt, d, ceiling)
			}
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
