package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/moviebox/internal/config"
	"github.com/benvon/moviebox/internal/logger"
	"github.com/benvon/moviebox/internal/queue"
	"github.com/benvon/moviebox/internal/telemetry"
	"github.com/benvon/moviebox/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging; the log mailer also prints message bodies")
	consoleFlag := flag.Bool("console-log", false, "Human-readable console logs for local development")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	newLogger := logger.NewProductionLogger
	if *consoleFlag {
		newLogger = logger.NewDevelopmentLogger
	}
	zapLogger, err := newLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_worker",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.Bool("smtp_enabled", cfg.SMTPEnabled()),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	if cfg.OTELEnabled {
		shutdownTracer, err := telemetry.Setup(context.Background(), telemetry.Options{
			ServiceName:    telemetry.ServiceName + "-worker",
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
			SampleRatio:    cfg.OTELSampleRatio,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	var mailer workers.Mailer
	if cfg.SMTPEnabled() {
		smtpMailer, err := workers.NewSMTPMailer(workers.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			zapLogger.Fatal("failed_to_configure_smtp", zap.Error(err))
		}
		mailer = smtpMailer
	} else {
		zapLogger.Warn("smtp_not_configured_logging_mail_instead")
		mailer = workers.NewLogMailer(zapLogger, debugMode)
	}

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	dispatcher := workers.NewMailDispatcher(mailer, jobQueue, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx, jobQueue, cfg.RabbitMQPrefetch)
	})

	zapLogger.Info("worker_started")
	if err := g.Wait(); err != nil {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("worker_stopped")
}
