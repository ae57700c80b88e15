package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kakeibo/internal/core"
)

// Form field names shared with the templates.
const (
	fieldDate        = "date"
	fieldType        = "type"
	fieldCategory    = "category"
	fieldDescription = "description"
	fieldAmount      = "amount"
	fieldPosition    = "position"
)

// ParseEntryForm builds an entry from the submitted form. The amount is the
// unsigned magnitude; the type decides the sign. An empty date means today.
func ParseEntryForm(form url.Values) (core.Entry, error) {
	date := core.Today()
	if v := strings.TrimSpace(form.Get(fieldDate)); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: %q", errInvalidDate, v)
		}
		date = d
	}

	t, err := core.ParseEntryType(form.Get(fieldType))
	if err != nil {
		return core.Entry{}, err
	}

	magnitude, err := core.ParseMagnitude(form.Get(fieldAmount))
	if err != nil {
		return core.Entry{}, err
	}

	return core.NewEntry(date,
		sanitizeInput(form.Get(fieldDescription)),
		sanitizeInput(form.Get(fieldCategory)),
		magnitude, t)
}

// ParsePosition reads the 0-based row position of a delete request.
func ParsePosition(form url.Values) (int, error) {
	v := strings.TrimSpace(form.Get(fieldPosition))
	p, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", v)
	}
	return p, nil
}

// ParseTypeParam reads the entry type from a query string, defaulting to
// expense.
func ParseTypeParam(query url.Values) (core.EntryType, error) {
	v := strings.TrimSpace(query.Get(fieldType))
	if v == "" {
		return core.Expense, nil
	}
	return core.ParseEntryType(v)
}

// RequireMethod returns a 405 response unless the request uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form; on failure it returns the 400
// response to send.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("リクエストの形式が不正です")
	}
	return nil
}
