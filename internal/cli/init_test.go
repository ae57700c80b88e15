package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kakeibo/internal/config"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("KAKEIBO_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAKEIBO_TEST_VALUE", "")
	os.Unsetenv("KAKEIBO_TEST_VALUE")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("KAKEIBO_TEST_VALUE"); got != "from-file" {
		t.Errorf("KAKEIBO_TEST_VALUE = %q", got)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sheets")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error for sheets without spreadsheet ID")
	}
}

func TestSetupLoggerUsesConfiguredLevel(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug"}, applog.ComponentCLI)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	if logger.Component() != applog.ComponentCLI {
		t.Errorf("component = %q", logger.Component())
	}
}

func TestInitSQLiteCreatesDirectory(t *testing.T) {
	cfg := &config.Config{SQLiteDBPath: filepath.Join(t.TempDir(), "nested", "kakeibo.db")}
	repo, err := InitSQLite(cfg)
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	defer repo.Close()
	if _, err := os.Stat(filepath.Dir(cfg.SQLiteDBPath)); err != nil {
		t.Errorf("directory missing: %v", err)
	}
}

func TestInitMirrorSeparateFromBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{
		SQLiteDBPath: filepath.Join(dir, "kakeibo.db"),
		MirrorDBPath: filepath.Join(dir, "mirror", "kakeibo-mirror.db"),
	}

	repo, err := InitSQLite(cfg)
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	defer repo.Close()
	mirror, err := InitMirror(cfg)
	if err != nil {
		t.Fatalf("InitMirror: %v", err)
	}
	defer mirror.Close()

	e, err := core.NewEntry(core.NewDate(2024, 1, 1), "コンビニ", "食費", 500, core.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mirror.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("mirror refresh touched the backend database: %d rows left", len(got))
	}
}

func TestShutdownRunsEveryStep(t *testing.T) {
	logger := applog.New(applog.Config{Output: io.Discard})
	var ran []int
	boom := errors.New("boom")
	err := Shutdown(logger, time.Second,
		func(context.Context) error { ran = append(ran, 1); return boom },
		func(context.Context) error { ran = append(ran, 2); return nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("Shutdown error = %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("steps run = %v", ran)
	}
}
