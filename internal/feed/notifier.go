// Package feed turns store writes into live, latest-value query results.
//
// Writers call Notifier.Publish after a successful write; readers hold a
// Subscription that re-runs its query on every change signal and keeps only
// the most recent snapshot pending.
package feed

import (
	"context"
	"sync"
)

// Notifier carries coalescing change signals. Publish never blocks on slow
// subscribers; a subscriber that has not consumed the previous signal simply
// sees one signal for several changes.
type Notifier interface {
	Publish(ctx context.Context) error
	// Subscribe returns a channel that receives a signal after each change.
	// It is closed when ctx is done or the notifier is closed.
	Subscribe(ctx context.Context) <-chan struct{}
	Close() error
}

// Hub is the in-process Notifier.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan struct{}]struct{})}
}

func (h *Hub) Publish(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		signal(ch)
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(ch)
	}()
	return ch
}

func (h *Hub) remove(ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close ends every subscription. Publish after Close is a no-op.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// signal does a non-blocking send on a buffer-1 channel.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
