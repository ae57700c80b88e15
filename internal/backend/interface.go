package backend

import (
	"context"

	"kakeibo/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is a ready ledger service and its cleanup.
type BackendResult struct {
	Service *services.LedgerService
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Google Sheets
	GoogleSpreadsheetID     string
	GoogleSheetName         string
	GoogleCredentialsFile   string
	GoogleCredentialsSecret string

	// SQLite
	SQLiteDBPath string

	// Memory
	SeedFile string

	// Change events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
