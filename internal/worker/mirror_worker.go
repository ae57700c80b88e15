package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

// Mirror receives full snapshots of the ledger.
type Mirror interface {
	ReplaceAll(ctx context.Context, entries []core.Entry) error
}

// MirrorWorker copies the authoritative ledger into a local mirror, on
// change events and on a timer.
type MirrorWorker struct {
	source sheets.EntryLister
	mirror Mirror

	mu       sync.Mutex // serializes refreshes
	lastRows int
	lastRun  time.Time
}

func NewMirrorWorker(source sheets.EntryLister, mirror Mirror) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror}
}

// Refresh replaces the mirror with a fresh listing of the source. On error
// the mirror keeps its previous contents.
func (w *MirrorWorker) Refresh(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	entries, err := w.source.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list source ledger: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, entries); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}

	w.lastRows, w.lastRun = len(entries), time.Now()
	slog.InfoContext(ctx, "Ledger mirror refreshed",
		"rows", len(entries),
		"balance", core.Balance(entries),
		"duration", time.Since(start))
	return nil
}

// HandleChange processes one change event from the queue.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"op", msg.Op,
		"position", msg.Position,
		"published_at", msg.Timestamp)
	return w.Refresh(ctx)
}

// Run refreshes immediately and then every interval until ctx is done.
// Refresh failures are logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid refresh interval %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Periodic mirror refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Mirror refresh loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status reports the size and time of the last successful refresh.
func (w *MirrorWorker) Status() (rows int, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRows, w.lastRun
}
