package feed

import (
	"context"
	"log/slog"
	"sync"
)

// Query produces a fresh snapshot. It must honour ctx cancellation.
type Query[T any] func(ctx context.Context) (T, error)

// Subscription re-runs a query on every change signal. C holds at most one
// pending snapshot: a newer result replaces an unread older one.
type Subscription[T any] struct {
	C <-chan T

	out    chan T
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe runs query once, then again after every change published on n,
// until ctx is done or Close is called. A failing query is logged and the
// previous snapshot stays current.
func Subscribe[T any](ctx context.Context, n Notifier, query Query[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	s := &Subscription[T]{
		C:      out,
		out:    out,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Subscribe before the first query so a write racing with it is not missed.
	changes := n.Subscribe(ctx)

	go func() {
		defer close(s.done)
		defer close(out)

		s.refresh(ctx, query)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.refresh(ctx, query)
			}
		}
	}()
	return s
}

func (s *Subscription[T]) refresh(ctx context.Context, query Query[T]) {
	v, err := query(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "Subscription query failed, keeping previous snapshot", "error", err)
		return
	}
	offer(s.out, v)
}

// Close stops the subscription and waits for it to finish. Any unread
// snapshot is discarded and C is closed.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		for range s.out {
		}
	})
}

// Done is closed once the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// offer puts v into a buffer-1 channel, replacing any unread value. Only one
// goroutine may send on ch.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
