package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	gsheet "google.golang.org/api/sheets/v4"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

const testCreds = `{"type":"authorized_user","client_id":"x","client_secret":"y","refresh_token":"z"}`

// fakeSheets serves the subset of the Sheets v4 REST API the client uses,
// backed by a single worksheet.
type fakeSheets struct {
	mu      sync.Mutex
	title   string
	rows    [][]any
	status  int // forced response status for every call when non-zero
	deletes []*gsheet.DimensionRange
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"forced failure"}}`, f.status)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid")
	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, map[string]any{
			"spreadsheetId": "sid",
			"sheets": []any{
				map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Archive", "index": 1}},
				map[string]any{"properties": map[string]any{"sheetId": 0, "title": f.title, "index": 0}},
			},
		})
	case path == ":batchUpdate" && r.Method == http.MethodPost:
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		rng := req.Requests[0].DeleteDimension.Range
		f.deletes = append(f.deletes, rng)
		f.rows = append(f.rows[:rng.StartIndex], f.rows[rng.EndIndex:]...)
		writeJSON(w, map[string]any{"spreadsheetId": "sid"})
	case strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		f.serveValues(w, r, rng)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSheets) serveValues(w http.ResponseWriter, r *http.Request, rng string) {
	switch {
	case strings.HasSuffix(rng, ":append") && r.Method == http.MethodPost:
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		n := len(f.rows)
		writeJSON(w, map[string]any{
			"updates": map[string]any{"updatedRange": fmt.Sprintf("'%s'!A%d:E%d", f.title, n, n)},
		})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		if len(f.rows) == 0 {
			f.rows = append(f.rows, nil)
		}
		f.rows[0] = vr.Values[0]
		writeJSON(w, map[string]any{"updatedRange": rng})
	case r.Method == http.MethodGet:
		values := f.rows
		if strings.HasSuffix(rng, "A1:E1") && len(values) > 1 {
			values = values[:1]
		}
		writeJSON(w, map[string]any{"range": rng, "values": values})
	default:
		http.NotFound(w, nil)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFake(t *testing.T, rows ...[]any) (*fakeSheets, Config) {
	t.Helper()
	f := &fakeSheets{title: "家計簿", rows: rows}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	cfg := Config{
		SpreadsheetID:     "sid",
		CredentialsSecret: "GCP_KEY_JSON",
		LookupEnv: func(k string) (string, bool) {
			if k == "GCP_KEY_JSON" {
				return testCreds, true
			}
			return "", false
		},
		Endpoint:   srv.URL + "/",
		HTTPClient: srv.Client(),
	}
	return f, cfg
}

func TestConnectAppendListDelete(t *testing.T) {
	ctx := context.Background()
	f, cfg := newFake(t, core.HeaderRow())

	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.sheetTitle != "家計簿" || c.sheetID != 0 {
		t.Fatalf("bound to wrong sheet %q/%d", c.sheetTitle, c.sheetID)
	}

	got, err := c.ListAll(ctx)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty ledger: got=%v err=%v", got, err)
	}

	e1, _ := core.NewEntry(core.NewDate(2024, 3, 1), "コンビニ", "食費", 500, core.Expense)
	e2, _ := core.NewEntry(core.NewDate(2024, 3, 25), "給与", "給料", 300000, core.Income)
	for i, e := range []core.Entry{e1, e2} {
		m, err := c.Append(ctx, e)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if !m.Stale || m.Op != sheets.OpAppend || m.Position != i {
			t.Fatalf("unexpected mutation %+v", m)
		}
	}

	got, err = c.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0] != e1 || got[1] != e2 {
		t.Fatalf("unexpected listing %+v", got)
	}

	m, err := c.DeleteAt(ctx, 0)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !m.Stale || m.Op != sheets.OpDelete {
		t.Fatalf("unexpected mutation %+v", m)
	}
	d := f.deletes[0]
	if d.SheetId != 0 || d.StartIndex != 1 || d.EndIndex != 2 || d.Dimension != "ROWS" {
		t.Fatalf("unexpected delete range %+v", d)
	}

	got, _ = c.ListAll(ctx)
	if len(got) != 1 || got[0] != e2 {
		t.Fatalf("listing after delete %+v", got)
	}
}

func TestDeleteOutOfRange(t *testing.T) {
	ctx := context.Background()
	f, cfg := newFake(t, core.HeaderRow(), []any{"2024-01-01", "a", "食費", -1, "支出"})
	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, p := range []int{-1, 1} {
		_, err := c.DeleteAt(ctx, p)
		var re *core.RangeError
		if !errors.As(err, &re) {
			t.Fatalf("position %d: expected RangeError, got %v", p, err)
		}
	}
	if len(f.deletes) != 0 {
		t.Fatalf("out of range delete reached the remote")
	}
}

func TestConnectWritesHeaderToBlankSheet(t *testing.T) {
	ctx := context.Background()
	f, cfg := newFake(t)
	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(f.rows) != 1 || f.rows[0][0] != core.HeaderDate {
		t.Fatalf("header not written: %v", f.rows)
	}
	e, _ := core.NewEntry(core.NewDate(2024, 1, 1), "", "食費", 1, core.Expense)
	m, err := c.Append(ctx, e)
	if err != nil || m.Position != 0 {
		t.Fatalf("first append: m=%+v err=%v", m, err)
	}
}

func TestListAllDecodeError(t *testing.T) {
	ctx := context.Background()
	_, cfg := newFake(t, core.HeaderRow(), []any{"2024-01-01", "a", "食費", "lots", "支出"})
	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = c.ListAll(ctx)
	var de *core.DecodeError
	if !errors.As(err, &de) || de.Row != 2 {
		t.Fatalf("expected DecodeError on row 2, got %v", err)
	}
}

func TestConnectAuthRejected(t *testing.T) {
	f, cfg := newFake(t)
	f.status = http.StatusForbidden
	_, err := Connect(context.Background(), cfg)
	var ae *core.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestRemoteFailures(t *testing.T) {
	ctx := context.Background()
	f, cfg := newFake(t, core.HeaderRow())
	c, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	f.mu.Lock()
	f.status = http.StatusInternalServerError
	f.mu.Unlock()

	e, _ := core.NewEntry(core.NewDate(2024, 1, 1), "x", "食費", 1, core.Expense)
	var re *core.RemoteError
	if _, err := c.Append(ctx, e); !errors.As(err, &re) || re.Op != "append" {
		t.Fatalf("append: expected RemoteError, got %v", err)
	}
	if _, err := c.ListAll(ctx); !errors.As(err, &re) {
		t.Fatalf("list: expected RemoteError, got %v", err)
	}
	if _, err := c.DeleteAt(ctx, 0); !errors.As(err, &re) {
		t.Fatalf("delete: expected RemoteError, got %v", err)
	}

	f.mu.Lock()
	f.status = http.StatusUnauthorized
	f.mu.Unlock()
	_, err = c.ListAll(ctx)
	var ae *core.AuthError
	if !errors.As(err, &re) || !errors.As(err, &ae) {
		t.Fatalf("expected RemoteError wrapping AuthError, got %v", err)
	}
}

func TestConnectUnknownSheet(t *testing.T) {
	_, cfg := newFake(t)
	cfg.SheetName = "nope"
	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestConnectNamedSheet(t *testing.T) {
	_, cfg := newFake(t, core.HeaderRow())
	cfg.SheetName = "Archive"
	c, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.sheetID != 7 {
		t.Fatalf("expected sheet 7, got %d", c.sheetID)
	}
}

func TestResolveCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secrets.json")
	env := map[string]string{"GCP_KEY_JSON": "from-secret"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Config{CredentialsFile: file, CredentialsSecret: "GCP_KEY_JSON", LookupEnv: lookup}

	data, source, err := resolveCredentials(cfg)
	if err != nil || string(data) != "from-secret" || source != "secret:GCP_KEY_JSON" {
		t.Fatalf("secret fallback: data=%q source=%q err=%v", data, source, err)
	}

	if err := os.WriteFile(file, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}
	data, source, err = resolveCredentials(cfg)
	if err != nil || string(data) != "from-file" || !strings.HasPrefix(source, "file:") {
		t.Fatalf("file first: data=%q source=%q err=%v", data, source, err)
	}

	_, _, err = resolveCredentials(Config{CredentialsFile: filepath.Join(dir, "none.json"), CredentialsSecret: "UNSET", LookupEnv: lookup})
	var ce *core.CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
}

func TestConnectMalformedCredentials(t *testing.T) {
	_, cfg := newFake(t)
	cfg.LookupEnv = func(string) (string, bool) { return "{not json", true }
	_, err := Connect(context.Background(), cfg)
	var ce *core.CredentialError
	if !errors.As(err, &ce) || ce.Source != "secret:GCP_KEY_JSON" {
		t.Fatalf("expected CredentialError from secret, got %v", err)
	}
}

func TestFirstRow(t *testing.T) {
	cases := map[string]int{
		"'家計簿'!A5:E5":    5,
		"Sheet1!A12:E12": 12,
		"A2":             2,
	}
	for in, want := range cases {
		if got, ok := firstRow(in); !ok || got != want {
			t.Fatalf("firstRow(%q)=%d,%v want %d", in, got, ok, want)
		}
	}
	if _, ok := firstRow("garbage"); ok {
		t.Fatalf("expected failure on garbage")
	}
}
