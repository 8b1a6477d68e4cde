package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinSessionSecretLength is the minimum number of bytes accepted for SESSION_SECRET
const MinSessionSecretLength = 32

// Config holds application configuration
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	EnableHSTS  bool   `env:"ENABLE_HSTS" envDefault:"false"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQPrefetch int    `env:"RABBITMQ_PREFETCH" envDefault:"1"`

	TMDBAPIKey      string        `env:"TMDB_API_KEY"`
	TMDBBaseURL     string        `env:"TMDB_BASE_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBRPS         float64       `env:"TMDB_RPS" envDefault:"20"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"10m"`
	DefaultLanguage string        `env:"DEFAULT_LANGUAGE" envDefault:"en-US"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// AuthCallbackURL receives the session after the Google code flow; empty answers with JSON
	AuthCallbackURL string `env:"AUTH_CALLBACK_URL"`

	RateLimitAPI  string `env:"RATE_LIMIT_API" envDefault:"20-S"`
	RateLimitAuth string `env:"RATE_LIMIT_AUTH" envDefault:"10-M"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"moviebox <no-reply@moviebox.local>"`

	OpenAIKey string        `env:"OPENAI_API_KEY"`
	AIModel   string        `env:"AI_MODEL"`
	AIBaseURL string        `env:"AI_BASE_URL"`
	DigestTTL time.Duration `env:"DIGEST_CACHE_TTL" envDefault:"24h"`

	WorkerDebugMode bool    `env:"WORKER_DEBUG_MODE" envDefault:"false"`
	ServerDebugMode bool    `env:"SERVER_DEBUG_MODE" envDefault:"false"`
	OTELEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.TMDBBaseURL = strings.TrimRight(cfg.TMDBBaseURL, "/")
	return cfg, nil
}

// ValidateServer checks the settings the API server cannot start without
func (c *Config) ValidateServer() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RabbitMQURL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required for account e-mail delivery"))
	}
	if c.TMDBAPIKey == "" {
		errs = append(errs, errors.New("TMDB_API_KEY is required"))
	}
	if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.TMDBRPS <= 0 {
		errs = append(errs, errors.New("TMDB_RPS must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWorker checks the settings the mail worker cannot start without
func (c *Config) ValidateWorker() error {
	if c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required")
	}
	if c.RabbitMQPrefetch <= 0 {
		return errors.New("RABBITMQ_PREFETCH must be positive")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in has been configured through the environment
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != ""
}

// DigestEnabled reports whether an LLM key is configured for the watchlist digest
func (c *Config) DigestEnabled() bool {
	return c.OpenAIKey != ""
}

// SMTPEnabled reports whether outbound mail should go through SMTP instead of the log mailer
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
