package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/store"
	"github.com/JonMunkholm/crm/internal/web"
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

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"reminders_enabled", cfg.Reminder.Enabled,
	)

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if err := backend.Ping(ctx); err != nil {
		slog.Error("failed to ping store", "driver", backend.Driver(), "error", err)
		os.Exit(1)
	}
	slog.Info("connected to store", "driver", backend.Driver())

	service := core.NewService(backend, core.Options{
		ChunkSize:     cfg.Import.ChunkSize,
		ReminderDays:  cfg.Import.ReminderDays,
		ImportTimeout: cfg.Import.Timeout,
		HistoryLimit:  cfg.Import.HistoryLimit,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Now:           time.Now,
	})

	server := web.NewServer(service, cfg, backend)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	if cfg.Reminder.Enabled {
		go service.StartReminderScheduler(jobCtx, cfg.Reminder.CheckInterval, core.LogNotifier{})
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running imports finish their current chunk
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
