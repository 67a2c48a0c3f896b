package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/datapull/fetchtozip/internal/config"
	"github.com/datapull/fetchtozip/internal/events"
	"github.com/datapull/fetchtozip/internal/fetch"
	"github.com/datapull/fetchtozip/internal/logging"
	"github.com/datapull/fetchtozip/internal/table"
	"github.com/datapull/fetchtozip/internal/task"
	"github.com/datapull/fetchtozip/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"default_format", cfg.Export.DefaultFormat,
		"max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		PageLimit: cfg.Fetch.PageLimit,
		PageSize:  cfg.Fetch.PageSize,
	})

	bus := events.NewBus()
	defer bus.Close()

	orchestrator := task.NewOrchestrator(fetcher, bus, task.Options{
		TmpRoot:       cfg.Export.TmpDir,
		MaxConcurrent: int64(cfg.Export.MaxConcurrent),
		RunTimeout:    cfg.Export.RunTimeout,
		Retention:     cfg.Export.Retention,
		SweepInterval: cfg.Export.SweepInterval,
	})

	registry := table.NewRegistry()
	store := task.NewConfigStore(task.Config{})

	server := web.NewServer(cfg, registry, store, orchestrator, fetcher)

	// Background retention sweep for terminal tasks and their artifacts
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go orchestrator.StartRetentionSweeper(jobCtx)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
