package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/ingest"
	"fintrack/internal/log"
)

func main() {
	cli.LoadEnvFile()
	bootstrap := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting ingest-worker", "backend", cfg.DataBackend)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for ingest-worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx := cli.GracefulShutdown(logger)

	backendResult := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := backendResult.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	store := backendResult.Store

	client, err := amqp.NewClient(ctx, amqp.Config{
		URL:           cfg.AMQPURL,
		Exchange:      cfg.AMQPExchange,
		Queue:         cfg.AMQPQueue,
		CandidatesKey: cfg.AMQPCandidates,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	presenter := ingest.MultiPresenter(ingest.LogPresenter(logger), client)
	ledgerService, processor := cli.WireServices(cfg, store, presenter, nil, logger)
	ledgerService.Load(ctx)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start ingest processor", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeMessageArrivals(gctx, func(ctx context.Context, event *amqp.MessageArrived) error {
			added, err := store.AddMessage(ctx, event.Message())
			if err != nil {
				return err
			}
			if added {
				processor.Trigger()
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Warn("Ingest processor stop failed", log.FieldError, err)
	}
	logger.Info("Worker exited")
}
