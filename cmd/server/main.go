package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/config"
	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/logging"
	"github.com/JonMunkholm/rejectlist/internal/metrics"
	"github.com/JonMunkholm/rejectlist/internal/storage"
	"github.com/JonMunkholm/rejectlist/internal/web"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// directory is what the server needs from a user directory.
type directory interface {
	auth.Authenticator
	auth.UserWriter
}

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
		"store_backend", cfg.Database.Backend,
		"session_backend", cfg.Session.Backend,
		"idle_timeout", cfg.Session.IdleTimeout,
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	loc, err := cfg.Records.Location()
	if err != nil {
		return fmt.Errorf("load time zone: %w", err)
	}

	m := metrics.New()

	// Record store and user directory
	var (
		store core.Store
		users directory
	)
	switch strings.ToLower(cfg.Database.Backend) {
	case config.BackendPostgres:
		pool, err := storage.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if err := storage.MigratePool(ctx, pool); err != nil {
				return err
			}
			slog.Info("database migrations applied")
		}

		db := storage.OpenDB(pool)
		defer db.Close()
		store = storage.NewPostgresStore(pool, loc, nil)
		users = storage.NewUserDirectory(db)
	default:
		slog.Warn("using in-memory record store; data is lost on restart")
		store = core.NewMemoryStore(loc, nil)
		users = auth.NewMemoryDirectory()
	}

	if cfg.Auth.BootstrapUser != "" {
		if err := users.PutUser(ctx, auth.UserSpec{
			Username:    cfg.Auth.BootstrapUser,
			Password:    cfg.Auth.BootstrapPassword,
			IsSuperuser: true,
			IsStaff:     true,
		}); err != nil {
			return fmt.Errorf("bootstrap admin user: %w", err)
		}
		slog.Info("bootstrap admin user ready", "username", cfg.Auth.BootstrapUser)
	}

	// Session store
	var sessions auth.SessionStore
	switch strings.ToLower(cfg.Session.Backend) {
	case config.SessionBackendRedis:
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = auth.NewRedisSessionStore(client, cfg.Redis.KeyPrefix, cfg.Session.MaxAge)
	default:
		sessions = auth.NewMemorySessionStore()
	}

	service := core.NewService(store, core.ServiceConfig{
		Location:             loc,
		MaxConcurrentImports: cfg.Ingest.MaxConcurrent,
		ImportWait:           cfg.Ingest.MaxWaitTime,
		MaxBatchSize:         cfg.Ingest.MaxBatchSize,
		Observer:             m,
	})
	manager := auth.NewManager(sessions, users, auth.ManagerConfig{
		IdleTimeout:   cfg.Session.IdleTimeout,
		MaxAge:        cfg.Session.MaxAge,
		TeamLeadGroup: cfg.Auth.TeamLeadGroup,
		ExemptPaths:   cfg.Session.ExemptPaths,
		PassivePaths:  cfg.Session.PassivePaths,
		Observer:      m,
	})

	var metricsForServer *metrics.Metrics
	if cfg.Metrics.Enabled {
		metricsForServer = m
	}
	server := web.NewServer(service, manager, metricsForServer, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go manager.RunSweeper(jobCtx, cfg.Session.SweepInterval)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active bulk ingests to complete (with timeout)
		status := service.ImportStatus()
		if status.Active > 0 {
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

	if err := server.Start(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	<-stopped
	slog.Info("server stopped")
	return nil
}

// connectRedis opens and verifies the session store connection.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("connected to redis", "addr", opts.Addr)
	return client, nil
}
