package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"financas/internal/cli"
	"financas/internal/config"
	applog "financas/internal/log"
	"financas/internal/sheets"
	gsheet "financas/internal/sheets/google"
	mem "financas/internal/sheets/memory"
	"financas/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(applog.ComponentWorker, cfg.SlogLevel())

	logger.Info("Starting financas-worker", "journal", cfg.JournalBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	journal, err := newJournal(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize journal", "error", err, "backend", cfg.JournalBackend)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(repo, journal, cfg.ExportBatchSize)
	processor := worker.NewExportProcessor(ledgerWorker, worker.ExportProcessorConfig{Interval: cfg.ExportInterval})

	amqpClient := cli.InitAMQP(logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop export processor", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
	})

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := ledgerWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", "error", err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeLedgerEvents(ctx, ledgerWorker.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - relying on periodic reconciliation", "interval", cfg.ExportInterval)
	}

	<-ctx.Done()
	<-done
	logger.Info("Worker stopped gracefully")
}

func newJournal(ctx context.Context, cfg *config.Config) (sheets.JournalWriter, error) {
	if cfg.JournalBackend != "sheets" {
		slog.Info("Using in-memory journal")
		return mem.New(), nil
	}
	j, err := gsheet.NewJournal(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return j, nil
}
