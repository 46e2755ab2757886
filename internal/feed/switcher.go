package feed

import (
	"context"
	"sync"
)

// Update is a snapshot tagged with the key it was queried for.
type Update[K comparable, T any] struct {
	Key   K
	Value T
}

// KeyedQuery produces a snapshot for key.
type KeyedQuery[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Switcher keeps exactly one live subscription, keyed by K. Switching keys
// tears the old subscription down before the new one starts, and results
// that belong to a superseded key never reach Updates.
type Switcher[K comparable, T any] struct {
	ctx      context.Context
	notifier Notifier
	query    KeyedQuery[K, T]
	out      chan Update[K, T]

	switchMu sync.Mutex // serializes Switch and Close
	current  *Subscription[T]

	mu     sync.Mutex // guards gen, key, closed and sends on out
	gen    uint64
	key    K
	hasKey bool
	closed bool
}

func NewSwitcher[K comparable, T any](ctx context.Context, n Notifier, query KeyedQuery[K, T]) *Switcher[K, T] {
	return &Switcher[K, T]{
		ctx:      ctx,
		notifier: n,
		query:    query,
		out:      make(chan Update[K, T], 1),
	}
}

// Updates delivers the latest snapshot for the current key. It holds at most
// one pending update and is closed by Close.
func (s *Switcher[K, T]) Updates() <-chan Update[K, T] {
	return s.out
}

// Key returns the current key, if any.
func (s *Switcher[K, T]) Key() (K, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.hasKey
}

// Switch cancels the active subscription and subscribes for key.
func (s *Switcher[K, T]) Switch(key K) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.key, s.hasKey = key, true
	drain(s.out)
	s.mu.Unlock()

	if s.current != nil {
		s.current.Close()
	}

	sub := Subscribe(s.ctx, s.notifier, func(ctx context.Context) (T, error) {
		return s.query(ctx, key)
	})
	s.current = sub

	go func() {
		for v := range sub.C {
			s.deliver(gen, Update[K, T]{Key: key, Value: v})
		}
	}()
}

func (s *Switcher[K, T]) deliver(gen uint64, u Update[K, T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	offer(s.out, u)
}

// Close stops the active subscription and closes Updates.
func (s *Switcher[K, T]) Close() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	drain(s.out)
	close(s.out)
	s.mu.Unlock()

	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
