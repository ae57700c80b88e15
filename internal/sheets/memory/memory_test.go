package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

func mustEntry(t *testing.T, desc, cat string, m int64, typ core.EntryType) core.Entry {
	t.Helper()
	e, err := core.NewEntry(core.NewDate(2024, 1, 1), desc, cat, m, typ)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	return e
}

func TestMemoryStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := New()

	got, err := s.ListAll(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty store: got=%v err=%v", got, err)
	}

	e := mustEntry(t, "コンビニ", "食費", 500, core.Expense)
	m, err := s.Append(ctx, e)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !m.Stale || m.Op != sheets.OpAppend || m.Position != 0 {
		t.Fatalf("unexpected mutation %+v", m)
	}

	got, _ = s.ListAll(ctx)
	if len(got) != 1 || got[len(got)-1] != e || got[0].Amount != -500 {
		t.Fatalf("unexpected listing %+v", got)
	}
}

func TestMemoryStoreAppendValidates(t *testing.T) {
	bad := core.Entry{Date: core.NewDate(2024, 1, 1), Category: "給料", Amount: -1, Type: core.Expense}
	if _, err := New().Append(context.Background(), bad); !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestMemoryStoreDeleteAt(t *testing.T) {
	ctx := context.Background()
	a := mustEntry(t, "a", "食費", 1, core.Expense)
	b := mustEntry(t, "b", "給料", 2, core.Income)
	c := mustEntry(t, "c", "趣味", 3, core.Expense)
	s := New(a, b, c)

	m, err := s.DeleteAt(ctx, 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !m.Stale || m.Op != sheets.OpDelete || m.Position != 1 {
		t.Fatalf("unexpected mutation %+v", m)
	}
	got, _ := s.ListAll(ctx)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("unexpected listing after delete %+v", got)
	}

	for _, p := range []int{-1, 2, 10} {
		_, err := s.DeleteAt(ctx, p)
		var re *core.RangeError
		if !errors.As(err, &re) {
			t.Fatalf("position %d: expected RangeError, got %v", p, err)
		}
	}
	got, _ = s.ListAll(ctx)
	if len(got) != 2 {
		t.Fatalf("failed delete modified the store: %+v", got)
	}
}

func TestListingIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New(mustEntry(t, "a", "食費", 1, core.Expense))
	got, _ := s.ListAll(ctx)
	got[0].Description = "changed"
	again, _ := s.ListAll(ctx)
	if again[0].Description != "a" {
		t.Fatalf("store mutated through listing")
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	if got, _ := NewFromFile(filepath.Join(dir, "missing.csv")).ListAll(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty store for missing file")
	}

	path := filepath.Join(dir, "seed.csv")
	content := "# seed\n日付,項目,カテゴリ,金額,タイプ\n2024-01-01,コンビニ,食費,-500,支出\nbroken,line\n2024-01-25,給与,給料,300000,収入\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	got, _ := NewFromFile(path).ListAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 seeded entries, got %+v", got)
	}
	if core.Balance(got) != 299500 {
		t.Fatalf("balance=%d", core.Balance(got))
	}
}
