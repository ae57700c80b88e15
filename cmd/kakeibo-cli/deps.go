package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	applog "kakeibo/internal/log"
	"kakeibo/internal/sheets"
)

// Deps holds what commands need from the outside so tests can swap it.
type Deps struct {
	Stdout io.Writer
	Stderr io.Writer
	// OpenLedger returns the ledger and a function releasing it.
	OpenLedger func(ctx context.Context, backendOverride string) (sheets.Ledger, func() error, error)
}

func DefaultDeps() *Deps {
	return &Deps{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		OpenLedger: openConfiguredLedger,
	}
}

// openConfiguredLedger builds the ledger from the environment, the same
// way the server does. A non-empty override replaces DATA_BACKEND.
func openConfiguredLedger(ctx context.Context, backendOverride string) (sheets.Ledger, func() error, error) {
	if err := cli.LoadEnvFile(); err != nil {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}
	if backendOverride != "" {
		os.Setenv("DATA_BACKEND", backendOverride)
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	// Logs go to stderr so they do not mix with command output.
	logger := cli.SetupLoggerTo(cfg, applog.ComponentCLI, os.Stderr)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if backendCfg.Type == backend.SQLiteBackend {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, nil, err
		}
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}
	return result.Service, result.Cleanup, nil
}
