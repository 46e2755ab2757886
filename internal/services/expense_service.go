package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"finpulse/internal/core"
	"finpulse/internal/store"

	"github.com/shopspring/decimal"
)

// ExpenseInput is the raw expense entry form.
type ExpenseInput struct {
	Title  string
	Amount string
	// Category is resolved by name and created when missing. CategoryID,
	// when set, takes precedence.
	Category   string
	CategoryID int64
	// Date defaults to now when zero.
	Date  time.Time
	Notes string
}

// ExpenseService validates expense entry and writes through the store.
type ExpenseService struct {
	store store.Store
	now   func() time.Time
}

func NewExpenseService(st store.Store) *ExpenseService {
	return &ExpenseService{store: st, now: time.Now}
}

// WithClock replaces the wall clock, for tests and deterministic replays.
func (s *ExpenseService) WithClock(now func() time.Time) *ExpenseService {
	s.now = now
	return s
}

// AddExpense validates in, resolves its category and stores it. Validation
// failures are *core.ValidationError values; nothing is written for them.
func (s *ExpenseService) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return core.Expense{}, &core.ValidationError{Field: "title", Err: core.ErrEmptyTitle}
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Expense{}, &core.ValidationError{Field: "amount", Err: err}
	}
	categoryName := strings.TrimSpace(in.Category)
	if in.CategoryID <= 0 && categoryName == "" {
		return core.Expense{}, &core.ValidationError{Field: "category", Err: core.ErrMissingCategory}
	}
	notes := core.NewNotes(in.Notes)
	if notes != nil && utf8.RuneCountInString(*notes) > core.MaxNotesLength {
		return core.Expense{}, &core.ValidationError{Field: "notes", Err: core.ErrNotesTooLong}
	}

	categoryID := in.CategoryID
	if categoryID <= 0 {
		c, err := s.store.InsertCategory(ctx, categoryName)
		if err != nil {
			return core.Expense{}, fmt.Errorf("resolve category %q: %w", categoryName, err)
		}
		categoryID = c.ID
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	e := core.Expense{
		Title:      title,
		Amount:     amount,
		CategoryID: categoryID,
		Date:       date,
		Notes:      notes,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense added",
		"id", id,
		"amount", core.FormatAmount(amount),
		"category_id", categoryID)
	return e, nil
}

// AddCategory creates a category, returning the existing one on a name clash.
func (s *ExpenseService) AddCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.InsertCategory(ctx, c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	return created, nil
}

func (s *ExpenseService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// TotalToday sums the expenses of now's calendar day.
func (s *ExpenseService) TotalToday(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	list, err := s.store.ListExpenses(ctx, core.Today().RangePtr(now))
	if err != nil {
		return decimal.Zero, fmt.Errorf("list today's expenses: %w", err)
	}
	return core.TotalAmount(list), nil
}

// Expenses lists the expenses selected by f relative to now.
func (s *ExpenseService) Expenses(ctx context.Context, f core.DateFilter, now time.Time) ([]core.ExpenseWithCategory, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	list, err := s.store.ListExpenses(ctx, f.RangePtr(now))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

// Close closes the underlying store.
func (s *ExpenseService) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
