package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/moviebox/internal/database"
	logpkg "github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/models"
	"github.com/benvon/moviebox/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// Default rates per scope, in ulule format
const (
	DefaultAPIRate  = "20-S"
	DefaultAuthRate = "10-M"
)

// NewRedisLimiterStore creates the Redis counter store for scope. Each scope
// gets its own key prefix so buckets never share counters.
func NewRedisLimiterStore(client *redis.Client, scope string) (limiter.Store, error) {
	return redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   "ratelimit:" + scope,
		MaxRetry: limiter.DefaultMaxRetry,
	})
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate of one scope from the database.
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	repo        database.RatelimitConfigStore
	scope       string
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     http.Handler
	rate        string
}

// NewRateLimitReloader creates a rate limit middleware for scope that loads its rate from the DB and hot-reloads it.
func NewRateLimitReloader(store limiter.Store, repo database.RatelimitConfigStore, scope, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if scope == "" {
		scope = database.RatelimitScopeAPI
	}
	if defaultRate == "" {
		defaultRate = DefaultAPIRate
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		scope:       scope,
		defaultRate: defaultRate,
		log:         logpkg.OrNop(log),
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with rate limiting and hot-reload.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}
	rateStr := r.defaultRate
	cfg, err := r.repo.Get(ctx, r.scope)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	case cfg != nil && cfg.Rate != "":
		rateStr = cfg.Rate
	default:
		// First start: persist the default so operators can see and edit it
		if err := r.repo.Set(ctx, &models.RatelimitConfig{ConfigKey: r.scope, Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.String("scope", r.scope),
				zap.Error(err),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err), zap.String("default_rate", r.defaultRate))
			return
		}
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, try again later", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			// Counter store unavailable: fail open
			r.log.Error("rate_limiter_store_failed", zap.String("scope", r.scope), zap.Error(err))
			r.next.ServeHTTP(w, req)
		}),
	)
	h := mw.Handler(r.next)

	r.mu.Lock()
	changed := r.rate != rateStr
	r.current = h
	r.rate = rateStr
	r.mu.Unlock()
	if changed {
		r.log.Info("ratelimit_config_loaded", zap.String("scope", r.scope), zap.String("rate", rateStr))
	}
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
