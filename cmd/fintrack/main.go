package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentApp)

	logger.Info("Starting fintrack", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx := cli.GracefulShutdown(logger)
	m := metrics.New()

	backendResult := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	store := backendResult.Store

	presenter := ingest.LogPresenter(logger)
	amqpClient := connectBroker(ctx, cfg, logger)
	if amqpClient != nil {
		defer amqpClient.Close()
		presenter = ingest.MultiPresenter(presenter, amqpClient)
	}

	ledgerService, processor := cli.WireServices(cfg, store, presenter, m, logger)
	ledgerService.Load(ctx)

	deps := apphttp.Deps{
		Ledger:              ledgerService,
		Ingest:              processor,
		Metrics:             m,
		Logger:              logger,
		Inbox:               store,
		Ready:               store.Ping,
		ScanInWorker:        !cfg.IngestInProcess,
		ForecastHorizonDays: cfg.ForecastHorizonDays,
		CategoryLookback:    cfg.CategoryLookback,
		CacheSize:           cfg.CacheSize,
		CacheTTL:            cfg.CacheTTL,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
	}
	// A nil *amqp.Client must not become a non-nil Publisher.
	if !cfg.IngestInProcess && amqpClient != nil {
		deps.Publisher = amqpClient
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	if cfg.IngestInProcess {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start ingest processor", log.FieldError, err)
		}
	} else {
		logger.Info("In-process ingestion disabled, ingest-worker owns scanning")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Warn("Ingest processor stop failed", log.FieldError, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return
	}
	logger.Info("Server exited")
}

// connectBroker returns nil when AMQP is not configured or unreachable.
// The API keeps serving without it.
func connectBroker(ctx context.Context, cfg *config.Config, logger *log.Logger) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(ctx, amqp.Config{
		URL:           cfg.AMQPURL,
		Exchange:      cfg.AMQPExchange,
		Queue:         cfg.AMQPQueue,
		CandidatesKey: cfg.AMQPCandidates,
	}, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without broker",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		return nil
	}
	return client
}
