package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tmplhub/internal/config"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/database"
	"tmplhub/internal/infra/org"
	"tmplhub/internal/infra/queue"
	"tmplhub/internal/infra/registry"
	"tmplhub/internal/infra/store"

	"github.com/hibiken/asynq"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	ctx := context.Background()

	// Organization hierarchy (tenant ids for the relational store)
	directory, err := org.New(org.Options{
		Source:        cfg.Hierarchy.Source,
		Organizations: cfg.Hierarchy.Organizations,
		SupabaseURL:   cfg.Supabase.URL,
		SupabaseKey:   cfg.Supabase.ServiceKey,
		CacheTTL:      time.Duration(cfg.Supabase.CacheTTLSec) * time.Second,
	})
	if err != nil {
		slog.Error("failed to initialize organization hierarchy", "error", err)
		os.Exit(1)
	}

	// Relational store (migration target)
	driver, err := database.ParseDriver(cfg.Database.Driver)
	if err != nil {
		slog.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	db, err := database.Open(ctx, database.Options{
		Driver:       driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Migrate:      cfg.Database.Migrate,
	})
	if err != nil {
		slog.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database initialized", "driver", db.Driver)

	// Legacy registry tree (migration source)
	tree := registry.NewRedisTree(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Registry.KeyPrefix)
	defer tree.Close()

	migrator := template.NewMigrator(store.NewLegacy(tree), store.NewRelational(db, directory))

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
		time.Duration(cfg.Queue.RetryDelaySec)*time.Second,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(template.TaskTypeMigrateLegacy, func(ctx context.Context, task *asynq.Task) error {
		payload, err := template.ParseMigrateLegacyPayload(task.Payload())
		if err != nil {
			return err
		}
		_, err = migrator.ProcessTask(ctx, payload)
		return err
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
