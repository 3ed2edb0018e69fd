package main

import (
	"context"
	"os"

	"expenseflow/internal/cli"
	apphttp "expenseflow/internal/http"
	"expenseflow/internal/lambdaproxy"
	"expenseflow/internal/log"

	"github.com/aws/aws-lambda-go/lambda"
)

var adapter *lambdaproxy.Adapter

// init builds the handler once per execution environment.
func init() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentLambda, os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.Bootstrap(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}

	srv := apphttp.NewServer("", app.Service, apphttp.Config{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	adapter = lambdaproxy.New(srv.HTTPHandler())
}

func main() {
	lambda.Start(adapter.Handle)
}
