package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"simplemoney/internal/backend"
	"simplemoney/internal/cli"
	apphttp "simplemoney/internal/http"
	"simplemoney/internal/log"
	"simplemoney/internal/telemetry"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	shutdownTracing, err := telemetry.Setup(context.Background(), "simplemoney", telemetry.Config{
		Endpoint: cfg.OTelEndpoint,
		Enabled:  cfg.OTelEnabled,
	})
	if err != nil {
		logger.Warn("Tracing disabled", log.FieldError, err)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory()
	if err := factory.Migrate(context.Background(), backendConfig); err != nil {
		logger.Error("Failed to run migrations", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	res, err := factory.CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Ledger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		TrustedProxies:     cfg.TrustedProxies,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Tracer shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting simplemoney server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil,
		"tracing", cfg.TracingEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
