package memory

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

var _ sheets.Ledger = (*Store)(nil)

// Store keeps rows in process, in insertion order.
type Store struct {
	mu    sync.Mutex
	items []core.Entry
}

func New(seed ...core.Entry) *Store {
	return &Store{items: append([]core.Entry(nil), seed...)}
}

// NewFromFile seeds the store from a CSV file with the sheet's column order
// (date, description, category, signed amount, type label). A missing file
// yields an empty store; malformed lines are skipped.
func NewFromFile(path string) *Store {
	f, err := os.Open(path)
	if err != nil {
		return New()
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		slog.Warn("Failed reading seed file", "path", path, "error", err)
		return New()
	}

	header := core.HeaderRow()
	var seed []core.Entry
	for _, rec := range records {
		if len(rec) > 0 && strings.TrimSpace(rec[0]) == core.HeaderDate {
			continue
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		got, err := core.DecodeRecords([][]any{header, row})
		if err != nil {
			slog.Warn("Skipping malformed seed line", "path", path, "line", strconv.Quote(strings.Join(rec, ",")), "error", err)
			continue
		}
		seed = append(seed, got...)
	}
	return New(seed...)
}

// Append stores the entry and reports its position.
func (s *Store) Append(_ context.Context, e core.Entry) (sheets.Mutation, error) {
	if err := e.Validate(); err != nil {
		return sheets.Mutation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return sheets.Mutated(sheets.OpAppend, len(s.items)-1), nil
}

// ListAll returns a copy of all rows.
func (s *Store) ListAll(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry{}, s.items...), nil
}

// DeleteAt removes the row at position.
func (s *Store) DeleteAt(_ context.Context, position int) (sheets.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := core.CheckPosition(position, len(s.items)); err != nil {
		return sheets.Mutation{}, err
	}
	s.items = append(s.items[:position], s.items[position+1:]...)
	return sheets.Mutated(sheets.OpDelete, position), nil
}
