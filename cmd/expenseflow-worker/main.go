package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"expenseflow/internal/amqp"
	"expenseflow/internal/backend"
	"expenseflow/internal/cache"
	"expenseflow/internal/cli"
	"expenseflow/internal/config"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
	"expenseflow/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker, os.Stdout)
	logger.Info("Starting expenseflow-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// run audits the sheet on a timer and watches appended events until ctx is
// cancelled. Either half is skipped when it is not configured.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg, logger)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer result.Close()

	if !result.Configured() && cfg.AMQPURL == "" {
		return errors.New("nothing to do: configure the spreadsheet or AMQP_URL")
	}

	g, gctx := errgroup.WithContext(ctx)

	if result.Configured() {
		auditor := services.NewAuditProcessor(result.Store, services.AuditProcessorConfig{PollInterval: cfg.AuditInterval}, logger)
		if err := auditor.Start(gctx); err != nil {
			return fmt.Errorf("start audit processor: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return auditor.Stop(stopCtx)
		})
	} else {
		logger.Info("Skipping sheet audits - spreadsheet not configured")
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("initialize AMQP client: %w", err)
		}
		defer client.Close()

		audit := worker.NewAuditWorker(cfg.AuditSeenCapacity, logger)
		caches := cache.NewManager(logger)
		caches.Register(audit.Seen())
		caches.StartCleanup(10 * time.Minute)
		defer caches.Stop()

		g.Go(func() error {
			err := client.ConsumeTransactionAppended(gctx, audit.HandleAppendedMessage)
			processed, dups := audit.Stats()
			logger.Info("Consumer stopped", "processed", processed, "duplicates", dups)
			return err
		})
	} else {
		logger.Info("Skipping AMQP consumption - AMQP_URL not set")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
