package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "kakeibo.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entry(t *testing.T, desc, cat string, m int64, typ core.EntryType) core.Entry {
	t.Helper()
	e, err := core.NewEntry(core.NewDate(2024, 2, 10), desc, cat, m, typ)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	return e
}

func TestRepositoryAppendListDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	got, err := repo.ListAll(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty mirror: got=%v err=%v", got, err)
	}

	a := entry(t, "コンビニ", "食費", 500, core.Expense)
	b := entry(t, "給与", "給料", 300000, core.Income)
	c := entry(t, "", "交通費", 220, core.Expense)
	for i, e := range []core.Entry{a, b, c} {
		m, err := repo.Append(ctx, e)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !m.Stale || m.Op != sheets.OpAppend || m.Position != i {
			t.Fatalf("unexpected mutation %+v", m)
		}
	}

	got, _ = repo.ListAll(ctx)
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Fatalf("unexpected listing %+v", got)
	}

	if _, err := repo.DeleteAt(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = repo.ListAll(ctx)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("listing after delete %+v", got)
	}

	_, err = repo.DeleteAt(ctx, 2)
	var re *core.RangeError
	if !errors.As(err, &re) || re.Position != 2 || re.Len != 2 {
		t.Fatalf("expected RangeError, got %v", err)
	}
}

func TestRepositoryAppendRejectsInvalid(t *testing.T) {
	repo := newRepo(t)
	bad := core.Entry{Date: core.NewDate(2024, 1, 1), Category: "食費", Amount: 10, Type: core.Expense}
	if _, err := repo.Append(context.Background(), bad); !errors.Is(err, core.ErrSignMismatch) {
		t.Fatalf("expected ErrSignMismatch, got %v", err)
	}
}

func TestRepositoryReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	if _, ok, err := repo.LastSync(ctx); err != nil || ok {
		t.Fatalf("expected no sync state, ok=%v err=%v", ok, err)
	}

	_, _ = repo.Append(ctx, entry(t, "old", "趣味", 1, core.Expense))

	// Legacy categories from the sheet are mirrored as-is.
	legacy := core.Entry{Date: core.NewDate(2023, 12, 1), Description: "家賃", Category: "固定費", Amount: -80000, Type: core.Expense}
	fresh := []core.Entry{legacy, entry(t, "給与", "給料", 300000, core.Income)}
	if err := repo.ReplaceAll(ctx, fresh); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, _ := repo.ListAll(ctx)
	if len(got) != 2 || got[0] != fresh[0] || got[1] != fresh[1] {
		t.Fatalf("unexpected mirror %+v", got)
	}
	state, ok, err := repo.LastSync(ctx)
	if err != nil || !ok || state.Rows != 2 || state.SyncedAt.IsZero() {
		t.Fatalf("unexpected sync state %+v ok=%v err=%v", state, ok, err)
	}

	if err := repo.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("replace with nothing: %v", err)
	}
	if got, _ := repo.ListAll(ctx); len(got) != 0 {
		t.Fatalf("expected empty mirror, got %+v", got)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil || v1 != v2 || v2 != 2 {
		t.Fatalf("second run: v1=%d v2=%d err=%v", v1, v2, err)
	}
}
