package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/services"
	"kakeibo/internal/sheets"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured ledger and wraps it in a
// LedgerService, with change events when AMQP is configured.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		ledger sheets.Ledger
		err    error
	)
	switch config.Type {
	case SheetsBackend:
		ledger, err = f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		ledger, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		ledger = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	svc := services.NewLedgerService(ledger, f.createPublisher(config))
	return &BackendResult{Service: svc, Cleanup: svc.Close}, nil
}

// SheetsConfig maps backend config onto the Google Sheets client config.
func SheetsConfig(config Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:     config.GoogleSpreadsheetID,
		SheetName:         config.GoogleSheetName,
		CredentialsFile:   config.GoogleCredentialsFile,
		CredentialsSecret: config.GoogleCredentialsSecret,
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (sheets.Ledger, error) {
	cli, err := gsheet.Connect(ctx, SheetsConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (sheets.Ledger, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) sheets.Ledger {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return memory.New()
	}
	store := memory.NewFromFile(config.SeedFile)
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return store
}

// createPublisher returns nil when AMQP is not configured or unreachable;
// the service then runs without change events.
func (f *DefaultFactory) createPublisher(config Config) services.ChangePublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
