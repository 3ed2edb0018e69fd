package cli

import (
	"context"
	"fmt"

	"expenseflow/internal/amqp"
	"expenseflow/internal/backend"
	"expenseflow/internal/config"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
)

// App bundles the backend, the optional event publisher and the
// transaction service built from them.
type App struct {
	Config    *config.Config
	Backend   *backend.BackendResult
	Publisher *amqp.Client
	Service   *services.TransactionService
}

// Bootstrap builds an App from cfg. An unconfigured spreadsheet is not an
// error: the service then answers every request with a configuration
// error. A broker that cannot be reached disables publishing.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	backendCfg, err := backend.FromAppConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	app := &App{Config: cfg, Backend: result}
	opts := []services.Option{
		services.WithTimeout(cfg.UpstreamTimeout),
		services.WithLogger(logger),
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", log.FieldError, err.Error())
		} else {
			app.Publisher = client
			opts = append(opts, services.WithPublisher(client))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	app.Service = services.NewTransactionService(result.Store, result.IDs, opts...)
	logger.Info("Backend ready", "backend", result.Describe, "configured", result.Configured())
	return app, nil
}

// Close releases the publisher and the backend.
func (a *App) Close() {
	if a.Publisher != nil {
		_ = a.Publisher.Close()
	}
	_ = a.Backend.Close()
}
