package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMissing is returned by Ephemeral lookups of absent or expired keys
var ErrMissing = errors.New("key not found")

// Ephemeral is a TTL key-value store for session registrations and OAuth states
type Ephemeral interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// Take returns and deletes key atomically
	Take(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RedisEphemeral implements Ephemeral on Redis
type RedisEphemeral struct {
	client *redis.Client
}

// NewRedisEphemeral creates a Redis backed ephemeral store
func NewRedisEphemeral(client *redis.Client) *RedisEphemeral {
	return &RedisEphemeral{client: client}
}

// Put stores value under key for ttl
func (e *RedisEphemeral) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return e.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value under key
func (e *RedisEphemeral) Get(ctx context.Context, key string) (string, error) {
	v, err := e.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMissing
	}
	return v, err
}

// Take returns the value under key and removes it
func (e *RedisEphemeral) Take(ctx context.Context, key string) (string, error) {
	v, err := e.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMissing
	}
	return v, err
}

// Delete removes key
func (e *RedisEphemeral) Delete(ctx context.Context, key string) error {
	return e.client.Del(ctx, key).Err()
}
