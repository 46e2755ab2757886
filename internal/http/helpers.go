package http

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/middleware/trace"
	"finpulse/internal/report"

	"github.com/shopspring/decimal"
)

// validationMessage turns a validation error into the text shown next to
// the form.
func validationMessage(err error) string {
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		return "Invalid data"
	}
	switch {
	case errors.Is(err, core.ErrEmptyTitle):
		return "Title is required"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number greater than zero"
	case errors.Is(err, core.ErrMissingCategory):
		return "Category is required"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category name is required"
	case errors.Is(err, core.ErrNotesTooLong):
		return "Notes are limited to 100 characters"
	case errors.Is(err, core.ErrInvalidDate):
		return "Date is not valid"
	case errors.Is(err, core.ErrInvalidFilter):
		return "Date filter is not valid"
	default:
		return "Invalid " + ve.Field + ": " + ve.Err.Error()
	}
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// templateFuncs are available to every page and partial.
func templateFuncs(symbol string, loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return core.FormatMoney(symbol, d) },
		"day":   func(t time.Time) string { return report.HumanDate(t, loc) },
		"isodate": func(t time.Time) string {
			return t.In(loc).Format("2006-01-02")
		},
		"notes": func(e core.Expense) string { return e.NotesText() },
	}
}
