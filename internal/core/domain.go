package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense EntryType = "expense"
	Income  EntryType = "income"
)

// DateLayout is the textual form dates take in the sheet.
const DateLayout = "2006-01-02"

type (
	EntryType string

	Date struct {
		time.Time
	}

	// Entry is one ledger row. Amount is signed: income is stored as the
	// entered magnitude, expense as its negation.
	Entry struct {
		Date        Date
		Description string
		Category    string
		Amount      int64
		Type        EntryType
	}
)

var (
	ErrInvalidType      = errors.New("invalid entry type")
	ErrInvalidCategory  = errors.New("invalid category for entry type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrSignMismatch     = errors.New("amount sign does not match entry type")
	ErrDescriptionLimit = errors.New("description too long (max 200 characters)")
	ErrZeroDate         = errors.New("date cannot be zero")
)

const maxDescriptionLen = 200

// Label returns the value written to the sheet's type column.
func (t EntryType) Label() string {
	switch t {
	case Expense:
		return "支出"
	case Income:
		return "収入"
	default:
		return string(t)
	}
}

func (t EntryType) Valid() bool {
	return t == Expense || t == Income
}

// ParseEntryType accepts both the internal names and the sheet labels.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.TrimSpace(s) {
	case "expense", "支出":
		return Expense, nil
	case "income", "収入":
		return Income, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Today returns the current local date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// SignedAmount applies the sign convention of t to a non-negative magnitude.
func SignedAmount(magnitude int64, t EntryType) int64 {
	if t == Expense {
		return -magnitude
	}
	return magnitude
}

// NewEntry builds a validated Entry from what the user typed: the magnitude
// is always entered as a non-negative number and signed here.
func NewEntry(date Date, description, category string, magnitude int64, t EntryType) (Entry, error) {
	if magnitude < 0 {
		return Entry{}, ErrNegativeAmount
	}
	e := Entry{
		Date:        date,
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
		Amount:      SignedAmount(magnitude, t),
		Type:        t,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Magnitude returns the unsigned amount.
func (e Entry) Magnitude() int64 {
	if e.Amount < 0 {
		return -e.Amount
	}
	return e.Amount
}

// Validate checks a fully built entry, including the category table and
// the description limit of the entry form.
func (e Entry) Validate() error {
	if err := e.validateShape(); err != nil {
		return err
	}
	if len([]rune(e.Description)) > maxDescriptionLen {
		return ErrDescriptionLimit
	}
	if !IsValidCategory(e.Type, e.Category) {
		return fmt.Errorf("%w: %q (%s)", ErrInvalidCategory, e.Category, e.Type)
	}
	return nil
}

// validateShape checks what every stored row must satisfy. Category
// membership and description length are only enforced on input.
func (e Entry) validateShape() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if (e.Type == Income && e.Amount < 0) || (e.Type == Expense && e.Amount > 0) {
		return ErrSignMismatch
	}
	return nil
}
