package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	apphttp "kakeibo/internal/http"
	applog "kakeibo/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	if backendCfg.Type == backend.SQLiteBackend {
		if err := cfg.EnsureDataDir(); err != nil {
			cli.Fatal(logger, "Failed to prepare data directory", err)
		}
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	opts := apphttp.Options{
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}
	// kakeibo-worker mirrors the spreadsheet; readiness reports its freshness.
	closeMirror := func(context.Context) error { return nil }
	if backendCfg.Type == backend.SheetsBackend {
		mirror, err := cli.InitMirror(cfg)
		if err != nil {
			logger.Warn("Mirror status disabled", applog.FieldError, err, "db_path", cfg.MirrorDBPath)
		} else {
			opts.Mirror = mirror
			closeMirror = func(context.Context) error { return mirror.Close() }
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, opts)
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting kakeibo server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		}
	}

	_ = cli.Shutdown(logger, 30*time.Second,
		srv.Shutdown,
		func(context.Context) error { return result.Cleanup() },
		closeMirror,
	)
	logger.Info("Server stopped gracefully")
}
