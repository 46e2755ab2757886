package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxNotesLength is the maximum number of characters accepted in Expense.Notes.
const MaxNotesLength = 100

type (
	Category struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID         int64
		Title      string
		Amount     decimal.Decimal
		CategoryID int64
		Date       time.Time
		Notes      *string // nil when absent
	}

	// ExpenseWithCategory is the read-only join of an expense and its category.
	ExpenseWithCategory struct {
		Expense  Expense
		Category Category
	}
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingCategory = errors.New("missing category")
	ErrEmptyCategory   = errors.New("empty category name")
	ErrNotesTooLong    = fmt.Errorf("notes too long (max %d characters)", MaxNotesLength)
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidFilter   = errors.New("invalid date filter")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is a user input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewNotes returns nil for blank notes so that absent and empty are the same thing.
func NewNotes(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NotesText returns the notes or the empty string when absent.
func (e Expense) NotesText() string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if !e.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if e.CategoryID <= 0 {
		return invalid("category", ErrMissingCategory)
	}
	if e.Date.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	if e.Notes != nil && utf8.RuneCountInString(*e.Notes) > MaxNotesLength {
		return invalid("notes", ErrNotesTooLong)
	}
	return nil
}

// FromUnixMilli converts a persisted timestamp to a time in loc.
func FromUnixMilli(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc)
}
