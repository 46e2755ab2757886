// Package store defines the persistence ports for expenses and categories.
package store

import (
	"context"
	"errors"

	"finpulse/internal/core"
)

var (
	// ErrUnknownCategory is returned when an expense references a category
	// that does not exist.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
)

// Ports for the persistence adapters.
type (
	CategoryStore interface {
		// ListCategories returns every category ordered by name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		// InsertCategory creates name, or returns the existing category when
		// one with the same name is already stored.
		InsertCategory(ctx context.Context, name string) (core.Category, error)
		// DeleteCategory removes the category and every expense that uses it.
		DeleteCategory(ctx context.Context, id int64) error
	}

	ExpenseStore interface {
		// InsertExpense stores e and returns its id.
		InsertExpense(ctx context.Context, e core.Expense) (int64, error)
		// ListExpenses returns expenses within r (all when r is nil), most
		// recent first.
		ListExpenses(ctx context.Context, r *core.Range) ([]core.ExpenseWithCategory, error)
	}

	Store interface {
		CategoryStore
		ExpenseStore
		Close() error
	}
)
