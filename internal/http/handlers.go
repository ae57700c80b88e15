package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/sheets"
)

type typeOption struct {
	Value core.EntryType
	Label string
}

var typeOptions = []typeOption{
	{Value: core.Expense, Label: core.Expense.Label()},
	{Value: core.Income, Label: core.Income.Label()},
}

type ledgerRow struct {
	Position int
	core.Entry
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Today      string
		Types      []typeOption
		Categories []string
	}{
		Today:      core.Today().String(),
		Types:      typeOptions,
		Categories: core.CategoriesFor(core.Expense),
	}
	s.render(w, r, "index.html", data)
}

// handleCategoryOptions renders the <option> list for the selected type so
// the category field follows the type radio.
func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	t, err := ParseTypeParam(r.URL.Query())
	if err != nil {
		BadRequestError("収支の種類が不正です").Write(w)
		return
	}
	s.render(w, r, "category_options.html", core.CategoriesFor(t))
}

// handleLedger renders the listing partial. Backend failures are shown
// inside the partial with status 200 so htmx still swaps it in.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := struct {
		Rows    []ledgerRow
		Summary core.Summary
		Error   string
	}{}

	entries, err := s.listing(ctx)
	if err != nil {
		eventLog(ctx).LogError(ctx, "Ledger listing failed", err, applog.OpList, nil)
		_, data.Error = userError(err)
		s.render(w, r, "ledger.html", data)
		return
	}

	data.Rows = make([]ledgerRow, len(entries))
	for i, e := range entries {
		data.Rows[i] = ledgerRow{Position: i, Entry: e}
	}
	data.Summary = core.Summarize(entries)
	s.render(w, r, "ledger.html", data)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	entry, err := ParseEntryForm(r.PostForm)
	if err != nil {
		s.writeError(w, r, "Entry rejected", err, applog.OpValidate)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	defer cancel()
	m, err := s.ledger.Append(cctx, entry)
	if err != nil {
		s.writeError(w, r, "Entry append failed", err, applog.OpAppend)
		return
	}
	s.invalidate()
	eventLog(ctx).LogEntryAppended(ctx, entry, m.Position)

	NewHTMXResponse().
		TriggerLedgerChanged(string(m.Op), m.Position).
		TriggerFormReset().
		TriggerSuccessNotification("スプレッドシートに保存しました！").
		BodyHTML(`<div class="success">スプレッドシートに保存しました！ ` +
			template.HTMLEscapeString(entry.Date.String()) + ` ` +
			template.HTMLEscapeString(entry.Category) + ` ` +
			template.HTMLEscapeString(core.FormatYen(entry.Amount)) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	position, err := ParsePosition(r.Form)
	if err != nil {
		BadRequestError("行番号が不正です").Write(w)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
	defer cancel()
	m, err := s.ledger.DeleteAt(cctx, position)
	if err != nil {
		var rangeErr *core.RangeError
		if errors.As(err, &rangeErr) {
			// The page was rendered from an older listing.
			s.invalidate()
		}
		s.writeError(w, r, "Entry delete failed", err, applog.OpDelete)
		return
	}
	s.invalidate()
	eventLog(ctx).LogEntryDeleted(ctx, m.Position)

	NewHTMXResponse().
		TriggerLedgerChanged(string(m.Op), m.Position).
		TriggerSuccessNotification("削除しました").
		Write(w)
}

// writeError logs err and answers with its user-facing message. A stale
// position also asks the page to reload the listing.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	ctx := r.Context()
	eventLog(ctx).LogError(ctx, msg, err, op, nil)

	status, text := userError(err)
	resp := ErrorResponse(status, text).TriggerErrorNotification(text)
	if status == http.StatusConflict {
		resp.TriggerLedgerChanged(string(sheets.OpDelete), -1)
	}
	resp.Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// handleReady checks templates and, when the ledger supports it, the
// backend connection. The mirror is reported but never fails readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	checks := map[string]string{"templates": "ok", "ledger": "ok"}
	status := http.StatusOK

	if s.templates == nil {
		checks["templates"] = "not loaded"
		status = http.StatusServiceUnavailable
	}
	if p, ok := s.ledger.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness ping failed", applog.FieldError, err)
			checks["ledger"] = applog.ErrorType(err)
			status = http.StatusServiceUnavailable
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	payload := map[string]any{
		"status":   state,
		"checks":   checks,
		"cache":    s.listCache.Stats(),
		"security": s.metrics.snapshot(),
	}
	if s.mirror != nil {
		last, ok, err := s.mirror.LastSync(ctx)
		switch {
		case err != nil:
			applog.FromContext(ctx).WarnContext(ctx, "Mirror status unavailable", applog.FieldError, err)
			checks["mirror"] = "unavailable"
		case !ok:
			checks["mirror"] = "never synced"
		default:
			checks["mirror"] = "ok"
			payload["mirror"] = map[string]any{
				"rows":        last.Rows,
				"synced_at":   last.SyncedAt.Format(time.RFC3339),
				"age_seconds": int64(time.Since(last.SyncedAt).Seconds()),
			}
		}
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
