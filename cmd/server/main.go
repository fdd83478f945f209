// Package main is the entry point for the Fitted server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (env vars, .env, config.yaml)
// 2. Create dependencies (logger, store, media, redis)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points. This
// project has two: cmd/server and cmd/seed.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fitted/fitted/internal/config"
	"github.com/fitted/fitted/internal/logging"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code, so deferred cleanup runs before exit.
func run() int {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.String("error", err.Error()))
		return 1
	}

	// === 2. SET UP LOGGING ===
	logger, closeLog := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer closeLog.Close()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	// === 3. OPEN INFRASTRUCTURE ===
	// Startup gets a bounded window; a store that cannot be reached in time
	// is a failed start, not a hang.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("store", cfg.Store), slog.String("error", err.Error()))
		return 1
	}

	mediaStore, uploadDir, err := server.OpenMedia(ctx, cfg)
	if err != nil {
		store.Close()
		logger.Error("failed to open media store", slog.String("backend", cfg.MediaBackend), slog.String("error", err.Error()))
		return 1
	}

	rdb, err := server.OpenRedis(ctx, cfg)
	if err != nil {
		store.Close()
		logger.Error("failed to connect to redis", slog.String("error", err.Error()))
		return 1
	}
	if rdb == nil {
		logger.Info("REDIS_ADDR not set: live updates and weather cache are local to this instance")
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GitHub login disabled (GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set)")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, server.Deps{
		Store:     store,
		Media:     mediaStore,
		UploadDir: uploadDir,
		Redis:     rdb,
		Metrics:   metrics.New(),
	}, logger)
	if err != nil {
		store.Close()
		if rdb != nil {
			rdb.Close()
		}
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return 1
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}
