package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column headers of the ledger sheet, in storage order.
const (
	HeaderDate        = "日付"
	HeaderDescription = "項目"
	HeaderCategory    = "カテゴリ"
	HeaderAmount      = "金額"
	HeaderType        = "タイプ"
)

// Header is the first row of the store.
var Header = []string{HeaderDate, HeaderDescription, HeaderCategory, HeaderAmount, HeaderType}

// HeaderRow returns Header as a value row for writing.
func HeaderRow() []any {
	row := make([]any, len(Header))
	for i, h := range Header {
		row[i] = h
	}
	return row
}

// EncodeRow serializes e as [date, description, category, amount, type].
func EncodeRow(e Entry) []any {
	return []any{e.Date.String(), e.Description, e.Category, e.Amount, e.Type.Label()}
}

// DecodeRecords decodes a value matrix whose first row is the header.
// Columns are located by header name, so their order in the sheet does not
// matter. A matrix with no data rows decodes to an empty slice.
func DecodeRecords(values [][]any) ([]Entry, error) {
	if len(values) == 0 {
		return []Entry{}, nil
	}
	idx, err := headerIndex(values[0])
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(values)-1)
	for i, row := range values[1:] {
		e, err := decodeRow(row, idx, i+2)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func headerIndex(header []any) (map[string]int, error) {
	idx := make(map[string]int, len(Header))
	for i, cell := range header {
		name := cellText(cell)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, h := range Header {
		if _, ok := idx[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &DecodeError{Row: 1, Err: fmt.Errorf("missing header columns %s", strings.Join(missing, ","))}
	}
	return idx, nil
}

func decodeRow(row []any, idx map[string]int, rowNum int) (Entry, error) {
	cell := func(name string) any {
		i := idx[name]
		if i >= len(row) {
			return nil
		}
		return row[i]
	}

	date, err := cellDate(cell(HeaderDate))
	if err != nil {
		return Entry{}, &DecodeError{Row: rowNum, Column: HeaderDate, Err: err}
	}
	amount, err := cellAmount(cell(HeaderAmount))
	if err != nil {
		return Entry{}, &DecodeError{Row: rowNum, Column: HeaderAmount, Err: err}
	}
	t, err := ParseEntryType(cellText(cell(HeaderType)))
	if err != nil {
		return Entry{}, &DecodeError{Row: rowNum, Column: HeaderType, Err: err}
	}
	e := Entry{
		Date:        date,
		Description: cellText(cell(HeaderDescription)),
		Category:    cellText(cell(HeaderCategory)),
		Amount:      amount,
		Type:        t,
	}
	if err := e.validateShape(); err != nil {
		return Entry{}, &DecodeError{Row: rowNum, Err: err}
	}
	return e, nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// sheetEpoch is day zero of spreadsheet serial dates.
var sheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func cellDate(v any) (Date, error) {
	switch x := v.(type) {
	case float64:
		return serialDate(x)
	case int:
		return serialDate(float64(x))
	case int64:
		return serialDate(float64(x))
	}
	s := cellText(v)
	if s == "" {
		return Date{}, ErrZeroDate
	}
	if d, err := ParseDate(s); err == nil {
		return d, nil
	}
	// USER_ENTERED dates may come back as "2024/01/02".
	if t, err := time.Parse("2006/01/02", s); err == nil {
		return Date{Time: t}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return serialDate(f)
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func serialDate(f float64) (Date, error) {
	if f < 1 || f != math.Trunc(f) {
		return Date{}, fmt.Errorf("invalid serial date %v", f)
	}
	return Date{Time: sheetEpoch.AddDate(0, 0, int(f))}, nil
}

func cellAmount(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidAmount, x)
		}
		return int64(x), nil
	}
	s := cellText(v)
	s = strings.NewReplacer(",", "", "¥", "", "￥", "", " ", "").Replace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return n, nil
}
