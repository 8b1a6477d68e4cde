package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"go.uber.org/zap"
)

// DefaultDigestTTL is how long a digest is reused while the saved list is unchanged
const DefaultDigestTTL = 24 * time.Hour

// Cache stores rendered digests. Any Get error is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DigestService caches provider digests per user and saved-list content
type DigestService struct {
	provider Provider
	cache    Cache
	ttl      time.Duration
	log      *zap.Logger
}

// NewDigestService creates a digest service. cache may be nil.
func NewDigestService(provider Provider, cache Cache, ttl time.Duration, log *zap.Logger) *DigestService {
	if ttl <= 0 {
		ttl = DefaultDigestTTL
	}
	return &DigestService{provider: provider, cache: cache, ttl: ttl, log: logger.OrNop(log)}
}

// Digest returns the digest of uid's saved list, reusing a cached one when
// the list has not changed. refresh skips the cache lookup.
func (s *DigestService) Digest(ctx context.Context, uid string, movies []models.SavedMovie, refresh bool) (*models.Digest, error) {
	if len(movies) == 0 {
		return nil, ErrNothingSaved
	}
	key := digestKey(uid, movies)

	if s.cache != nil && !refresh {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var d models.Digest
			if err := json.Unmarshal(raw, &d); err == nil {
				return &d, nil
			}
		}
	}

	d, err := s.provider.Digest(ctx, movies)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		raw, err := json.Marshal(d)
		if err == nil {
			err = s.cache.Set(ctx, key, raw, s.ttl)
		}
		if err != nil {
			s.log.Warn("digest_cache_write_failed", zap.String("user", HashUserID(uid)), zap.Error(err))
		}
	}
	s.log.Info("digest_generated", zap.String("user", HashUserID(uid)), zap.Int("movie_count", len(movies)))
	return d, nil
}

// digestKey changes whenever the set or order of saved ids changes
func digestKey(uid string, movies []models.SavedMovie) string {
	h := sha256.New()
	for _, m := range movies {
		h.Write([]byte(strconv.Itoa(m.ID)))
		h.Write([]byte{','})
	}
	return "digest:" + HashUserID(uid) + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}
