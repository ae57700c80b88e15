package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

var _ sheets.Ledger = (*LedgerService)(nil)

// ChangePublisher announces ledger mutations to other processes.
type ChangePublisher interface {
	PublishLedgerChange(ctx context.Context, op string, position int) error
}

// LedgerService wraps a ledger backend, logging every call and publishing a
// change event after each successful mutation. It satisfies sheets.Ledger
// so callers do not need to know whether events are enabled.
type LedgerService struct {
	ledger    sheets.Ledger
	publisher ChangePublisher
}

// NewLedgerService accepts a nil publisher; events are then skipped.
func NewLedgerService(ledger sheets.Ledger, publisher ChangePublisher) *LedgerService {
	return &LedgerService{ledger: ledger, publisher: publisher}
}

// Append stores e and announces the change. A failed announcement is logged
// but does not fail the call: the row is already stored.
func (s *LedgerService) Append(ctx context.Context, e core.Entry) (sheets.Mutation, error) {
	m, err := s.ledger.Append(ctx, e)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append entry", "error", err, "category", e.Category)
		return m, fmt.Errorf("append entry: %w", err)
	}
	s.announce(ctx, m)
	return m, nil
}

func (s *LedgerService) ListAll(ctx context.Context) ([]core.Entry, error) {
	entries, err := s.ledger.ListAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list entries", "error", err)
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *LedgerService) DeleteAt(ctx context.Context, position int) (sheets.Mutation, error) {
	m, err := s.ledger.DeleteAt(ctx, position)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete entry", "error", err, "position", position)
		return m, fmt.Errorf("delete entry: %w", err)
	}
	s.announce(ctx, m)
	return m, nil
}

// Overview lists all entries with their totals.
func (s *LedgerService) Overview(ctx context.Context) ([]core.Entry, core.Summary, error) {
	entries, err := s.ListAll(ctx)
	if err != nil {
		return nil, core.Summary{}, err
	}
	return entries, core.Summarize(entries), nil
}

// Ping reports backend readiness when the backend supports it.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.ledger.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *LedgerService) announce(ctx context.Context, m sheets.Mutation) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping event", "op", string(m.Op))
		return
	}
	if err := s.publisher.PublishLedgerChange(ctx, string(m.Op), m.Position); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"op", string(m.Op),
			"position", m.Position,
			"error", err)
	}
}

// Close closes the backend and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.ledger.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
