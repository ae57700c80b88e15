package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

func TestParseEntryForm(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		want    core.Entry
		wantErr error
	}{
		{
			name: "expense is stored negative",
			form: url.Values{"date": {"2024-05-01"}, "type": {"expense"}, "category": {"食費"}, "description": {" ランチ "}, "amount": {"1,200"}},
			want: core.Entry{Date: core.NewDate(2024, 5, 1), Description: "ランチ", Category: "食費", Amount: -1200, Type: core.Expense},
		},
		{
			name: "income keeps its sign",
			form: url.Values{"date": {"2024-05-25"}, "type": {"収入"}, "category": {"給料"}, "amount": {"250000"}},
			want: core.Entry{Date: core.NewDate(2024, 5, 25), Category: "給料", Amount: 250000, Type: core.Income},
		},
		{
			name:    "bad date",
			form:    url.Values{"date": {"05/01/2024"}, "type": {"expense"}, "category": {"食費"}, "amount": {"1"}},
			wantErr: errInvalidDate,
		},
		{
			name:    "unknown type",
			form:    url.Values{"type": {"transfer"}, "category": {"食費"}, "amount": {"1"}},
			wantErr: core.ErrInvalidType,
		},
		{
			name:    "category from the other type",
			form:    url.Values{"type": {"income"}, "category": {"食費"}, "amount": {"1"}},
			wantErr: core.ErrInvalidCategory,
		},
		{
			name:    "negative amount",
			form:    url.Values{"type": {"expense"}, "category": {"食費"}, "amount": {"-5"}},
			wantErr: core.ErrNegativeAmount,
		},
		{
			name:    "missing amount",
			form:    url.Values{"type": {"expense"}, "category": {"食費"}},
			wantErr: core.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntryForm(tt.form)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEntryForm() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntryForm() unexpected error: %v", err)
			}
			if !got.Date.Equal(tt.want.Date.Time) || got.Description != tt.want.Description ||
				got.Category != tt.want.Category || got.Amount != tt.want.Amount || got.Type != tt.want.Type {
				t.Errorf("ParseEntryForm() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseEntryFormDefaultsToToday(t *testing.T) {
	e, err := ParseEntryForm(url.Values{"type": {"expense"}, "category": {"交通費"}, "amount": {"210"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Date.String() != core.Today().String() {
		t.Errorf("date = %s, want today", e.Date)
	}
}

func TestParsePosition(t *testing.T) {
	if p, err := ParsePosition(url.Values{"position": {" 3 "}}); err != nil || p != 3 {
		t.Errorf("ParsePosition() = %d, %v", p, err)
	}
	for _, bad := range []string{"", "x", "1.5"} {
		if _, err := ParsePosition(url.Values{"position": {bad}}); err == nil {
			t.Errorf("ParsePosition(%q) expected error", bad)
		}
	}
}

func TestParseTypeParam(t *testing.T) {
	tests := []struct {
		in      string
		want    core.EntryType
		wantErr bool
	}{
		{"", core.Expense, false},
		{"income", core.Income, false},
		{"支出", core.Expense, false},
		{"other", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTypeParam(url.Values{"type": {tt.in}})
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTypeParam(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"DELETE allowed with multiple", http.MethodDelete, []string{http.MethodDelete, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("field=value"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if result := ParseFormOrFail(req); result != nil {
		t.Error("Expected nil for valid form, got error response")
	}
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}

	bad := httptest.NewRequest(http.MethodPost, "/test?%zz", nil)
	if result := ParseFormOrFail(bad); result == nil {
		t.Error("Expected error response for malformed query")
	}
}
