package main

import (
	"context"
	"errors"
	"os"
	"time"

	"simplemoney/internal/amqp"
	"simplemoney/internal/backend"
	"simplemoney/internal/cli"
	"simplemoney/internal/log"
	"simplemoney/internal/services"
	"simplemoney/internal/sheets"
	gsheet "simplemoney/internal/sheets/google"
	"simplemoney/internal/telemetry"
	"simplemoney/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting simplemoney-worker")

	shutdownTracing, err := telemetry.Setup(context.Background(), "simplemoney-worker", telemetry.Config{
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
	// The worker consumes events; it does not publish them.
	backendConfig.AMQPURL = ""

	res, err := backend.NewFactory().CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var exporter sheets.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.NewFromConfig(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.SheetsCredentialsFile(),
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	reconciler := services.NewReconciler(res.Ledger, services.ReconcilerConfig{
		Interval:    cfg.ReconcileInterval,
		Concurrency: cfg.ReconcileConcurrency,
	})

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - reconciling on the interval only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := reconciler.Stop(ctx); err != nil {
			logger.Warn("Reconciler stop error", log.FieldError, err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Tracer shutdown error", log.FieldError, err)
		}
	})

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", log.FieldError, err)
		os.Exit(1)
	}

	if events != nil {
		handler := worker.NewEventWorker(res.Ledger, exporter)
		go func() {
			if err := events.ConsumeLedgerEvents(ctx, handler.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
