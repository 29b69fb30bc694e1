package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tmplhub/internal/config"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/database"
	"tmplhub/internal/infra/defaults"
	"tmplhub/internal/infra/org"
	"tmplhub/internal/infra/queue"
	"tmplhub/internal/infra/registry"
	"tmplhub/internal/infra/store"
	"tmplhub/internal/router"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"store", cfg.Store.Backend,
		"hierarchy", cfg.Hierarchy.Source,
	)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	ctx := context.Background()

	kind, err := store.ParseKind(cfg.Store.Backend)
	if err != nil {
		slog.Error("invalid store configuration", "error", err)
		os.Exit(1)
	}

	// Organization hierarchy
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
	slog.Info("organization hierarchy initialized", "source", cfg.Hierarchy.Source)

	opts := store.Options{
		Kind:          kind,
		Tenants:       directory,
		CacheTTL:      time.Duration(cfg.Store.CacheTTLSec) * time.Second,
		CacheCapacity: cfg.Store.CacheCapacity,
	}

	// Relational store
	if kind != store.KindRegistry {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
			os.Exit(1)
		}
		defer db.Close()
		opts.DB = db
		slog.Info("database initialized", "driver", db.Driver)
	}

	// Legacy registry tree
	if kind != store.KindDatabase {
		tree := registry.NewRedisTree(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Registry.KeyPrefix)
		defer tree.Close()
		opts.Tree = tree
		slog.Info("registry tree initialized", "redis", cfg.Redis.Address)
	}

	backend, err := store.New(opts)
	if err != nil {
		slog.Error("failed to initialize template store", "error", err)
		os.Exit(1)
	}
	if c, ok := backend.(*store.Cached); ok {
		defer c.Close()
	}

	// System defaults
	defaultTemplates, err := defaults.Load(cfg.Defaults.Path)
	if err != nil {
		slog.Error("failed to load system default templates", "error", err, "path", cfg.Defaults.Path)
		os.Exit(1)
	}
	defaultStore, err := store.NewDefaults(defaultTemplates)
	if err != nil {
		slog.Error("failed to build system default templates", "error", err)
		os.Exit(1)
	}
	slog.Info("system default templates loaded", "count", len(defaultTemplates))

	// Resolver + Service
	resolver := template.NewResolver(defaultStore, backend, directory, template.ResolverConfig{
		Parallelism: cfg.Store.Parallelism,
	})
	templateService, err := template.NewService(template.Deps{
		Resolved:    resolver,
		Own:         backend,
		EmailLocale: cfg.Defaults.EmailLocale,
		SMSLocale:   cfg.Defaults.SMSLocale,
	})
	if err != nil {
		slog.Error("failed to initialize template service", "error", err)
		os.Exit(1)
	}

	// Asynq Client (for enqueuing legacy migrations)
	var enqueuer template.MigrationEnqueuer
	if kind == store.KindHybrid {
		asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer asynqClient.Close()
		enqueuer = queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)
		slog.Info("asynq client initialized", "redis", cfg.Redis.Address)
	}

	// Handler
	templateHandler := template.NewHandler(templateService, enqueuer)

	// Router
	r, rateLimiter := router.New(cfg, templateHandler)
	defer rateLimiter.Stop()

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	driver, err := database.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, database.Options{
		Driver:       driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		Migrate:      cfg.Migrate,
	})
}
