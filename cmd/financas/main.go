package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"financas/internal/cache"
	"financas/internal/cli"
	apphttp "financas/internal/http"
	applog "financas/internal/log"
	"financas/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp, slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(applog.ComponentApp, cfg.SlogLevel())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	scheduler, err := services.NewInstallmentScheduler(cfg.OverflowPolicy())
	if err != nil {
		logger.Error("Failed to build installment scheduler", "error", err, "policy", cfg.DayOverflow)
		os.Exit(1)
	}

	// A nil *amqp.Client must not end up inside the interface.
	var publisher services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	reports := services.NewReportService(repo, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reports.Cache())
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	ledger := services.NewLedgerService(repo, reports)
	cards := services.NewCardService(repo, scheduler, publisher, reports)

	srv, err := apphttp.NewServer(":"+cfg.Port, cards, ledger, reports, repo, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting financas server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"day_overflow", cfg.OverflowPolicy(),
		"events", publisher != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
