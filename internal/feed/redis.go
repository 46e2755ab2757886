package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const changedPayload = "changed"

// RedisNotifier fans change signals out over a Redis pub/sub channel so that
// processes sharing one database see each other's writes.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// ParseRedisOptions accepts either a redis:// URL or a bare host:port.
func ParseRedisOptions(redisURL string) *redis.Options {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback to simple connection
		opt = &redis.Options{Addr: strings.TrimPrefix(redisURL, "redis://")}
	}
	return opt
}

// NewRedisNotifier connects to Redis and checks the connection with a ping.
func NewRedisNotifier(ctx context.Context, redisURL, channel string) (*RedisNotifier, error) {
	if channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	client := redis.NewClient(ParseRedisOptions(redisURL))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

func (n *RedisNotifier) Publish(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, changedPayload).Err(); err != nil {
		return fmt.Errorf("publish change on %s: %w", n.channel, err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	ps := n.client.Subscribe(ctx, n.channel)

	// Wait for the subscription to be confirmed so a publish that follows
	// Subscribe is not lost.
	if _, err := ps.Receive(ctx); err != nil {
		slog.WarnContext(ctx, "Redis subscription not confirmed", "channel", n.channel, "error", err)
	}

	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()
	return out
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
