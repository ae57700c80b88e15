package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"

	_ "modernc.org/sqlite"
)

var _ sheets.Ledger = (*SQLiteRepository)(nil)

// SQLiteRepository is a local mirror of the ledger. Row order is insertion
// order (the id column), which matches sheet order after ReplaceAll.
type SQLiteRepository struct {
	db *sql.DB
}

// SyncState describes the last full refresh written by ReplaceAll.
type SyncState struct {
	Rows     int
	SyncedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer keeps position lookups and deletes consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite mirror ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database for /readyz.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Append(ctx context.Context, e core.Entry) (sheets.Mutation, error) {
	if err := e.Validate(); err != nil {
		return sheets.Mutation{}, fmt.Errorf("validation failed: %w", err)
	}

	var position int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
		n, err := countEntries(ctx, tx)
		position = n - 1
		return err
	})
	if err != nil {
		return sheets.Mutation{}, fmt.Errorf("append entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"position", position,
		"amount", e.Amount,
		"category", e.Category)
	return sheets.Mutated(sheets.OpAppend, position), nil
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, description, category, amount, type FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		var date, desc, cat, typ string
		var amount int64
		if err := rows.Scan(&date, &desc, &cat, &amount, &typ); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		t, err := core.ParseEntryType(typ)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		entries = append(entries, core.Entry{Date: d, Description: desc, Category: cat, Amount: amount, Type: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) DeleteAt(ctx context.Context, position int) (sheets.Mutation, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		n, err := countEntries(ctx, tx)
		if err != nil {
			return err
		}
		if err := core.CheckPosition(position, n); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM entries WHERE id = (SELECT id FROM entries ORDER BY id LIMIT 1 OFFSET ?)`, position)
		return err
	})
	if err != nil {
		var re *core.RangeError
		if errors.As(err, &re) {
			return sheets.Mutation{}, err
		}
		return sheets.Mutation{}, fmt.Errorf("delete entry: %w", err)
	}
	slog.InfoContext(ctx, "Entry deleted from SQLite", "position", position)
	return sheets.Mutated(sheets.OpDelete, position), nil
}

// ReplaceAll swaps the mirror contents for entries in one transaction.
// Entries are stored as read from the source, without category checks.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, entries []core.Entry) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
			return err
		}
		// Restart ids so that positions and ids stay in step.
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'entries'`); err != nil {
			return err
		}
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sync_state (id, rows, synced_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET rows = excluded.rows, synced_at = excluded.synced_at`,
			len(entries), time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("replace entries: %w", err)
	}
	return nil
}

// LastSync reports the most recent ReplaceAll; ok is false if none ran yet.
func (r *SQLiteRepository) LastSync(ctx context.Context) (state SyncState, ok bool, err error) {
	var syncedAt string
	err = r.db.QueryRowContext(ctx, `SELECT rows, synced_at FROM sync_state WHERE id = 1`).
		Scan(&state.Rows, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncState{}, false, nil
	}
	if err != nil {
		return SyncState{}, false, fmt.Errorf("read sync state: %w", err)
	}
	state.SyncedAt, err = time.Parse(time.RFC3339, syncedAt)
	if err != nil {
		return SyncState{}, false, fmt.Errorf("parse sync time: %w", err)
	}
	return state, true, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertEntry(ctx context.Context, tx *sql.Tx, e core.Entry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entries (date, description, category, amount, type) VALUES (?, ?, ?, ?, ?)`,
		e.Date.String(), e.Description, e.Category, e.Amount, string(e.Type))
	return err
}

func countEntries(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}
