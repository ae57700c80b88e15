// Package cli holds the startup steps shared by the kakeibo commands:
// environment loading, logging, config validation and signal handling.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kakeibo/internal/config"
	applog "kakeibo/internal/log"
	"kakeibo/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error; production sets the environment directly.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// LoadConfig reads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from cfg, writing to stdout, and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	return SetupLoggerTo(cfg, component, os.Stdout)
}

// SetupLoggerTo is SetupLogger with an explicit output.
func SetupLoggerTo(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	logCfg := applog.DefaultConfig()
	logCfg.Level = level
	logCfg.Component = component
	logCfg.Output = out
	logger := applog.New(logCfg)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	applog.SetDefault(logger)
	return logger
}

// InitSQLite opens the SQLite repository, creating its directory first.
func InitSQLite(cfg *config.Config) (*storage.SQLiteRepository, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return openRepository(cfg.SQLiteDBPath)
}

// InitMirror opens the mirror database kept by kakeibo-worker.
func InitMirror(cfg *config.Config) (*storage.SQLiteRepository, error) {
	if err := cfg.EnsureMirrorDir(); err != nil {
		return nil, err
	}
	return openRepository(cfg.MirrorDBPath)
}

func openRepository(path string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", path, err)
	}
	return repo, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Shutdown runs each step with a shared timeout and logs failures. All
// steps run even when an earlier one fails.
func Shutdown(logger *applog.Logger, timeout time.Duration, steps ...func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if err := step(ctx); err != nil {
			logger.Error("Shutdown step failed", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
			errs = append(errs, err)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	}
	return errors.Join(errs...)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err, applog.FieldErrorType, applog.ErrorType(err))
	os.Exit(1)
}
