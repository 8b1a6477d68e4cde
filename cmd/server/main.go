package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/moviebox/api"
	"github.com/benvon/moviebox/internal/auth"
	"github.com/benvon/moviebox/internal/config"
	"github.com/benvon/moviebox/internal/database"
	"github.com/benvon/moviebox/internal/handlers"
	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/middleware"
	"github.com/benvon/moviebox/internal/queue"
	"github.com/benvon/moviebox/internal/savedmovies"
	"github.com/benvon/moviebox/internal/services/ai"
	"github.com/benvon/moviebox/internal/services/oidc"
	"github.com/benvon/moviebox/internal/telemetry"
	"github.com/benvon/moviebox/internal/tmdb"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	reloadInterval      = time.Minute
	tokenCleanupEvery   = time.Hour
	dlqSweepInterval    = time.Hour
	dlqRetention        = 24 * time.Hour
	requestTimeout      = 30 * time.Second
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including LLM request logging")
	consoleFlag := flag.Bool("console-log", false, "Human-readable console logs for local development")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	newLogger := logger.NewProductionLogger
	if *consoleFlag {
		newLogger = logger.NewDevelopmentLogger
	}
	zapLogger, err := newLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("google_env_configured", cfg.GoogleEnabled()),
		zap.Bool("digest_enabled", cfg.DigestEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracing := false
	if cfg.OTELEnabled {
		shutdownTracer, err := telemetry.Setup(context.Background(), telemetry.Options{
			ServiceName:    telemetry.ServiceName,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
			SampleRatio:    cfg.OTELSampleRatio,
		})
		switch {
		case err != nil:
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		case cfg.OTELEndpoint == "":
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		default:
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracer(ctx); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_apply_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	// Repositories
	userRepo := database.NewUserRepository(db)
	tokenRepo := database.NewAccountTokenRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Services
	catalog, err := tmdb.NewClient(tmdb.Options{
		APIKey:   cfg.TMDBAPIKey,
		BaseURL:  cfg.TMDBBaseURL,
		RPS:      cfg.TMDBRPS,
		CacheTTL: cfg.CatalogCacheTTL,
		Cache:    tmdb.NewRedisCache(rdb),
		Logger:   zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_create_catalog_client", zap.Error(err))
	}

	ephemeral := auth.NewRedisEphemeral(rdb)
	outbound := &http.Client{Timeout: 10 * time.Second}
	google := oidc.NewGoogle(
		oidc.NewProvider(oidcConfigRepo, oidc.EnvConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)),
		outbound,
	)
	authService := auth.NewService(auth.Options{
		Users:       userRepo,
		Tokens:      tokenRepo,
		Sessions:    auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, ephemeral),
		States:      ephemeral,
		Mail:        jobQueue,
		Google:      google,
		LinkBaseURL: cfg.FrontendURL,
		Logger:      zapLogger,
	})
	savedService := savedmovies.NewService(savedmovies.NewRedisKV(rdb), zapLogger)

	// Handlers
	movieHandler := handlers.NewMovieHandler(catalog, cfg.DefaultLanguage, zapLogger)
	authHandler := handlers.NewAuthHandler(authService, cfg.AuthCallbackURL, zapLogger)
	savedHandler := handlers.NewSavedHandler(savedService, zapLogger)
	healthChecker := handlers.NewHealthChecker(
		handlers.Dependency{Name: "database", Check: db.PingContext},
		handlers.Dependency{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		handlers.Dependency{Name: "rabbitmq", Check: jobQueue.HealthCheck},
	)
	openAPIHandler, err := handlers.NewOpenAPIHandler(api.OpenAPI)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}
	var digestHandler *handlers.DigestHandler
	if cfg.DigestEnabled() {
		provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
		digestService := ai.NewDigestService(provider, tmdb.NewRedisCache(rdb), cfg.DigestTTL, zapLogger)
		digestHandler = handlers.NewDigestHandler(savedService, digestService, zapLogger)
	}

	// Rate limits, one Redis bucket family per scope
	apiLimiter := newRateLimiter(rdb, ratelimitConfigRepo, database.RatelimitScopeAPI, cfg.RateLimitAPI, zapLogger)
	authLimiter := newRateLimiter(rdb, ratelimitConfigRepo, database.RatelimitScopeAuth, cfg.RateLimitAuth, zapLogger)
	requireSession := middleware.Auth(authService, zapLogger)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if tracing {
		r.Use(otelmux.Middleware(telemetry.ServiceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, reloadInterval)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Language(cfg.DefaultLanguage))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	credentialRouter := apiRouter.PathPrefix("/auth").Subrouter()
	credentialRouter.Use(authLimiter.Middleware())
	authHandler.RegisterCredentialRoutes(credentialRouter)

	sessionRouter := apiRouter.PathPrefix("/auth").Subrouter()
	sessionRouter.Use(apiLimiter.Middleware())
	sessionRouter.Use(requireSession)
	authHandler.RegisterSessionRoutes(sessionRouter)

	meRouter := apiRouter.PathPrefix("/me").Subrouter()
	meRouter.Use(apiLimiter.Middleware())
	meRouter.Use(requireSession)
	savedHandler.RegisterRoutes(meRouter.PathPrefix("/saved-movies").Subrouter())
	if digestHandler != nil {
		digestHandler.RegisterRoutes(meRouter)
	}

	catalogRouter := apiRouter.PathPrefix("").Subrouter()
	catalogRouter.Use(apiLimiter.Middleware())
	movieHandler.RegisterRoutes(catalogRouter)

	// Preflight requests; CORS headers are already set by the reloader
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   requestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go corsReloader.Start(bgCtx)
	go apiLimiter.Start(bgCtx)
	go authLimiter.Start(bgCtx)
	go cleanupAccountTokens(bgCtx, tokenRepo, zapLogger)

	deadMail := queue.NewDeadMailSweeper(jobQueue, dlqSweepInterval, dlqRetention, zapLogger)
	go func() {
		if err := deadMail.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dead_mail_sweeper_stopped", zap.Error(err))
		}
	}()

	go func() {
		zapLogger.Info("server_listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// connectRabbitMQ dials with exponential backoff so the server survives the
// broker starting after it
func connectRabbitMQ(url string, log *zap.Logger) *queue.RabbitMQQueue {
	const (
		maxAttempts  = 10
		initialDelay = 2 * time.Second
		maxDelay     = 30 * time.Second
	)
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, log)
		if err == nil {
			log.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err
		delay := min(initialDelay*time.Duration(1<<attempt), maxDelay)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	log.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Int("max_attempts", maxAttempts), zap.Error(lastErr))
	return nil
}

func newRateLimiter(rdb *redis.Client, repo database.RatelimitConfigStore, scope, defaultRate string, log *zap.Logger) *middleware.RateLimitReloader {
	store, err := middleware.NewRedisLimiterStore(rdb, scope)
	if err != nil {
		log.Fatal("failed_to_create_rate_limit_store", zap.String("scope", scope), zap.Error(err))
	}
	return middleware.NewRateLimitReloader(store, repo, scope, defaultRate, log, reloadInterval)
}

// cleanupAccountTokens deletes used-up reset and verification tokens once they expire
func cleanupAccountTokens(ctx context.Context, repo database.AccountTokenRepositoryInterface, log *zap.Logger) {
	ticker := time.NewTicker(tokenCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Warn("account_token_cleanup_failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("account_tokens_deleted", zap.Int64("count", n))
			}
		}
	}
}

func versionInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
