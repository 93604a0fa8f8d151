// Package cli provides common process bootstrap shared by cmd/finan and
// cmd/finan-report.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finan/internal/config"
	"finan/internal/log"
	"finan/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat != "" {
		lc.Format = cfg.LogFormat
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// runs validate. It exits the process on validation failure.
func LoadAndValidateConfig(validate func(*config.Config) error) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the SQLite repository without touching its schema.
// It exits the process on failure.
func InitSQLite(logger *log.Logger, cfg *config.Config) *storage.SQLiteRepository {
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid ledger timezone", log.FieldError, err, "timezone", cfg.LedgerTimezone)
		os.Exit(1)
	}
	repo, err := storage.Open(cfg.SQLiteDBPath, storage.WithLocation(loc))
	if err != nil {
		logger.Error("Failed to open SQLite database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return repo
}

// EnsureSchema provisions the schema and seed data, exiting the process when
// initialization fails. Cancellation is not fatal.
func EnsureSchema(ctx context.Context, logger *log.Logger, repo *storage.SQLiteRepository) {
	start := time.Now()
	if err := repo.EnsureSchema(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("Ledger initialization failed", log.FieldError, err,
			"initialization", errors.Is(err, storage.ErrInitialization))
		os.Exit(1)
	}
	logger.Info("Ledger ready", log.FieldDuration, time.Since(start).Milliseconds())
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled once a signal arrives and cleanup has
// run with a context bounded by timeout; done is closed afterwards.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}

		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
