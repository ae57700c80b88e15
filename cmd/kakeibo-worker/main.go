package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	applog "kakeibo/internal/log"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/worker"
)

// kakeibo-worker keeps a local SQLite mirror of the spreadsheet. It
// refreshes on every ledger change event and on a fixed interval.
func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	if cfg.GoogleSpreadsheetID == "" {
		cli.Fatal(logger, "Worker needs a spreadsheet to mirror", errors.New("GOOGLE_SPREADSHEET_ID is not set"))
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	mirror, err := cli.InitMirror(cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite mirror", err)
	}
	defer mirror.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	source, err := gsheet.Connect(ctx, backend.SheetsConfig(backendCfg))
	if err != nil {
		cli.Fatal(logger, "Failed to connect to Google Sheets", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	w := worker.NewMirrorWorker(source, mirror)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, cfg.MirrorInterval)
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeLedgerChanges(gctx, w.HandleChange)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic refresh", "interval", cfg.MirrorInterval)
	}

	logger.Info("Starting kakeibo-worker", "interval", cfg.MirrorInterval, "db_path", cfg.MirrorDBPath)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		_ = mirror.Close()
		os.Exit(1)
	}

	rows, at := w.Status()
	logger.Info("Worker shutdown complete", "rows", rows, "last_refresh", at.Format(time.RFC3339))
}
