package store

import (
	"context"
	"errors"
	"log/slog"

	"finpulse/internal/core"
	"finpulse/internal/feed"
)

// Observable wraps a Store and publishes a change signal after every
// successful write, so subscriptions re-run their queries.
type Observable struct {
	Store
	notifier feed.Notifier
}

func NewObservable(s Store, n feed.Notifier) *Observable {
	return &Observable{Store: s, notifier: n}
}

// Notifier exposes the change notifier for callers building their own
// subscriptions.
func (o *Observable) Notifier() feed.Notifier {
	return o.notifier
}

func (o *Observable) InsertCategory(ctx context.Context, name string) (core.Category, error) {
	c, err := o.Store.InsertCategory(ctx, name)
	if err != nil {
		return core.Category{}, err
	}
	o.changed(ctx)
	return c, nil
}

func (o *Observable) DeleteCategory(ctx context.Context, id int64) error {
	if err := o.Store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	o.changed(ctx)
	return nil
}

func (o *Observable) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := o.Store.InsertExpense(ctx, e)
	if err != nil {
		return 0, err
	}
	o.changed(ctx)
	return id, nil
}

// The write already succeeded; a lost signal only delays readers.
func (o *Observable) changed(ctx context.Context) {
	if err := o.notifier.Publish(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to publish change notification", "error", err)
	}
}

// ObserveCategories streams the category list, re-queried after each write.
func (o *Observable) ObserveCategories(ctx context.Context) *feed.Subscription[[]core.Category] {
	return feed.Subscribe(ctx, o.notifier, o.Store.ListCategories)
}

// ObserveExpenses streams the expenses within r (all when nil).
func (o *Observable) ObserveExpenses(ctx context.Context, r *core.Range) *feed.Subscription[[]core.ExpenseWithCategory] {
	var bounds *core.Range
	if r != nil {
		copied := *r
		bounds = &copied
	}
	return feed.Subscribe(ctx, o.notifier, func(ctx context.Context) ([]core.ExpenseWithCategory, error) {
		return o.Store.ListExpenses(ctx, bounds)
	})
}

// Close closes the notifier and the underlying store.
func (o *Observable) Close() error {
	return errors.Join(o.notifier.Close(), o.Store.Close())
}
