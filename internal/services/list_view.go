package services

import (
	"context"
	"fmt"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/feed"
	"finpulse/internal/store"

	"github.com/shopspring/decimal"
)

// ListSnapshot is one rendering of the expense list screen.
type ListSnapshot struct {
	Filter   core.DateFilter
	Title    string
	Expenses []core.ExpenseWithCategory
	Count    int
	Total    decimal.Decimal
}

// NewListSnapshot builds the list screen for f from already filtered expenses.
func NewListSnapshot(f core.DateFilter, list []core.ExpenseWithCategory) ListSnapshot {
	return ListSnapshot{
		Filter:   f,
		Title:    f.Title(),
		Expenses: list,
		Count:    len(list),
		Total:    core.TotalAmount(list),
	}
}

// ListView follows the expense list for the selected filter. Changing the
// filter drops the previous subscription; only the latest filter's
// snapshots reach Updates.
type ListView struct {
	switcher *feed.Switcher[core.DateFilter, ListSnapshot]
}

// NewListView starts with no filter selected; call SetFilter to subscribe.
func NewListView(ctx context.Context, st store.ExpenseStore, n feed.Notifier, now func() time.Time) *ListView {
	if now == nil {
		now = time.Now
	}
	query := func(ctx context.Context, f core.DateFilter) (ListSnapshot, error) {
		list, err := st.ListExpenses(ctx, f.RangePtr(now()))
		if err != nil {
			return ListSnapshot{}, fmt.Errorf("list expenses for %s: %w", f, err)
		}
		return NewListSnapshot(f, list), nil
	}
	return &ListView{switcher: feed.NewSwitcher(ctx, n, query)}
}

// SetFilter switches the list to f.
func (v *ListView) SetFilter(f core.DateFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.switcher.Switch(f)
	return nil
}

// Filter returns the active filter, if one was set.
func (v *ListView) Filter() (core.DateFilter, bool) {
	return v.switcher.Key()
}

func (v *ListView) Updates() <-chan feed.Update[core.DateFilter, ListSnapshot] {
	return v.switcher.Updates()
}

func (v *ListView) Close() {
	v.switcher.Close()
}
