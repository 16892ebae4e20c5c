// Package cli provides the startup steps shared by cmd/fintrack and
// cmd/ingest-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/resilience"
	"fintrack/internal/services"
)

// SetupLogger builds the process logger at the given level and makes it
// the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured store or exits the process.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldError, err, "backend", backendCfg.Type.String())
		os.Exit(1)
	}
	return result
}

// WireServices builds the ledger service and the ingest processor over
// one store. The feed is guarded by a circuit breaker so a failing store
// does not get hammered by every tick.
func WireServices(cfg *config.Config, store backend.Store, presenter ingest.Presenter, m *metrics.Metrics, logger *log.Logger) (*services.LedgerService, *services.IngestProcessor) {
	ledgerService := services.NewLedgerService(store, m, logger)

	pipeline := ingest.NewPipeline(
		store,
		ingest.StaticGate(cfg.FeedAccessGranted),
		store,
		presenter,
		ingest.PipelineConfig{BatchSize: cfg.IngestBatchSize, Location: time.Local},
		ingest.WithMetrics(m),
		ingest.WithLogger(logger),
		ingest.WithBreaker(resilience.NewCircuitBreaker("ingest-feed")),
	)

	processor := services.NewIngestProcessor(pipeline, ledgerService,
		services.IngestProcessorConfig{Interval: cfg.IngestInterval}, logger)
	return ledgerService, processor
}

// GracefulShutdown returns a context that is cancelled on SIGINT or
// SIGTERM.
func GracefulShutdown(logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return ctx
}
