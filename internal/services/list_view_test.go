package services

import (
	"context"
	"testing"
	"time"

	"finpulse/internal/core"
	"finpulse/internal/feed"
	"finpulse/internal/store"
	"finpulse/internal/store/memory"

	"github.com/shopspring/decimal"
)

func nextUpdate(t *testing.T, v *ListView) feed.Update[core.DateFilter, ListSnapshot] {
	t.Helper()
	select {
	case u, ok := <-v.Updates():
		if !ok {
			t.Fatal("updates closed")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for list update")
	}
	return feed.Update[core.DateFilter, ListSnapshot]{}
}

func TestListView_FollowsFilterAndWrites(t *testing.T) {
	ctx := context.Background()
	obs := store.NewObservable(memory.New([]string{"Food"}), feed.NewHub())
	defer obs.Close()
	svc := NewExpenseService(obs).WithClock(func() time.Time { return fixedNow })

	_, _ = svc.AddExpense(ctx, ExpenseInput{Title: "old", Amount: "5", Category: "Food", Date: fixedNow.AddDate(0, 0, -3)})

	view := NewListView(ctx, obs, obs.Notifier(), func() time.Time { return fixedNow })
	defer view.Close()

	if err := view.SetFilter(core.Today()); err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}
	u := nextUpdate(t, view)
	if u.Key != core.Today() || u.Value.Count != 0 || u.Value.Title != "Today's Expenses" {
		t.Fatalf("unexpected today snapshot %+v", u)
	}

	if _, err := svc.AddExpense(ctx, ExpenseInput{Title: "now", Amount: "2.50", Category: "Food"}); err != nil {
		t.Fatalf("AddExpense() error = %v", err)
	}
	u = nextUpdate(t, view)
	if u.Value.Count != 1 || !u.Value.Total.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected the new expense in today's list, got %+v", u.Value)
	}

	week := core.LastNDays(7)
	if err := view.SetFilter(week); err != nil {
		t.Fatalf("SetFilter() error = %v", err)
	}
	u = nextUpdate(t, view)
	if u.Key != week || u.Value.Count != 2 || u.Value.Title != "Last 7 Days" {
		t.Fatalf("unexpected week snapshot %+v", u)
	}
	if f, ok := view.Filter(); !ok || f != week {
		t.Fatalf("Filter() = %v %v", f, ok)
	}
}

func TestListView_RejectsInvalidFilter(t *testing.T) {
	ctx := context.Background()
	st := memory.New(nil)
	view := NewListView(ctx, st, feed.NewHub(), nil)
	defer view.Close()

	if err := view.SetFilter(core.LastNDays(-1)); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := view.Filter(); ok {
		t.Fatal("invalid filter must not be applied")
	}
}
