package feed

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestHub_PublishCoalesces(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx)
	require.NoError(t, hub.Publish(ctx))
	require.NoError(t, hub.Publish(ctx))
	require.NoError(t, hub.Publish(ctx))

	receive(t, ch)
	select {
	case <-ch:
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx)
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, waitFor, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(context.Background())
	require.NoError(t, hub.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, hub.Publish(context.Background()))

	late := hub.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}

func TestOffer_ReplacesPending(t *testing.T) {
	ch := make(chan int, 1)
	offer(ch, 1)
	offer(ch, 2)
	offer(ch, 3)

	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 0, len(ch))
}

func TestSubscribe_InitialAndChanges(t *testing.T) {
	hub := NewHub()
	var value atomic.Int64
	value.Store(1)

	sub := Subscribe(context.Background(), hub, func(ctx context.Context) (int64, error) {
		return value.Load(), nil
	})
	defer sub.Close()

	assert.Equal(t, int64(1), receive(t, sub.C))

	value.Store(2)
	require.NoError(t, hub.Publish(context.Background()))
	assert.Equal(t, int64(2), receive(t, sub.C))
}

func TestSubscribe_LatestValueWins(t *testing.T) {
	hub := NewHub()
	var value atomic.Int64

	sub := Subscribe(context.Background(), hub, func(ctx context.Context) (int64, error) {
		return value.Load(), nil
	})
	defer sub.Close()
	receive(t, sub.C)

	for i := int64(1); i <= 5; i++ {
		value.Store(i)
		require.NoError(t, hub.Publish(context.Background()))
	}

	// Intermediate snapshots may be skipped, but values never go backwards
	// and the last one always arrives.
	last := int64(-1)
	for last != 5 {
		v := receive(t, sub.C)
		require.GreaterOrEqual(t, v, last)
		last = v
	}
}

func TestSubscribe_QueryErrorKeepsPrevious(t *testing.T) {
	hub := NewHub()
	var fail atomic.Bool
	var calls atomic.Int32

	sub := Subscribe(context.Background(), hub, func(ctx context.Context) (string, error) {
		calls.Add(1)
		if fail.Load() {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	defer sub.Close()
	assert.Equal(t, "ok", receive(t, sub.C))

	fail.Store(true)
	require.NoError(t, hub.Publish(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, waitFor, 5*time.Millisecond)

	select {
	case v := <-sub.C:
		t.Fatalf("failed query must not emit, got %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := Subscribe(context.Background(), hub, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok, "no value may be delivered after Close")
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, waitFor, 5*time.Millisecond)

	// Close is idempotent.
	sub.Close()
}

func TestSwitcher_DropsStaleKeys(t *testing.T) {
	hub := NewHub()
	release := make(chan struct{})

	sw := NewSwitcher(context.Background(), hub, func(ctx context.Context, key string) (string, error) {
		if key == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "result:" + key, nil
	})
	defer sw.Close()

	sw.Switch("slow")
	sw.Switch("fast")
	close(release)

	u := receive(t, sw.Updates())
	assert.Equal(t, "fast", u.Key)
	assert.Equal(t, "result:fast", u.Value)

	key, ok := sw.Key()
	assert.True(t, ok)
	assert.Equal(t, "fast", key)

	require.NoError(t, hub.Publish(context.Background()))
	u = receive(t, sw.Updates())
	assert.Equal(t, "fast", u.Key)
}

func TestSwitcher_Close(t *testing.T) {
	hub := NewHub()
	sw := NewSwitcher(context.Background(), hub, func(ctx context.Context, key int) (int, error) {
		return key * 10, nil
	})

	sw.Switch(1)
	assert.Equal(t, 10, receive(t, sw.Updates()).Value)

	sw.Close()
	_, ok := <-sw.Updates()
	assert.False(t, ok)
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, waitFor, 5*time.Millisecond)

	// Switch after Close is ignored.
	sw.Switch(2)
}

func TestParseRedisOptions(t *testing.T) {
	assert.Equal(t, "localhost:6379", ParseRedisOptions("localhost:6379").Addr)
	opt := ParseRedisOptions("redis://cache:6380/2")
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}

func TestRedisNotifier(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := NewRedisNotifier(ctx, url, "finpulse:test:"+t.Name())
	require.NoError(t, err)
	defer n.Close()

	ch := n.Subscribe(ctx)
	require.NoError(t, n.Publish(ctx))
	receive(t, ch)
}
