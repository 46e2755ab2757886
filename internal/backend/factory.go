package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finpulse/internal/feed"
	"finpulse/internal/store"
	"finpulse/internal/store/memory"
	"finpulse/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	notifier, err := f.createNotifier(ctx, config)
	if err != nil {
		return nil, err
	}

	var (
		base store.Store
		ping func(context.Context) error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Location)
		if err != nil {
			_ = notifier.Close()
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		base, ping = repo, repo.Ping
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data" // Default directory
		}
		base = memory.NewFromFiles(dataDir)
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	default:
		_ = notifier.Close()
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	obs := store.NewObservable(base, notifier)
	return &BackendResult{
		Store:   obs,
		Cleanup: obs.Close,
		Ping:    ping,
	}, nil
}

func (f *DefaultFactory) createNotifier(ctx context.Context, config Config) (feed.Notifier, error) {
	if config.RedisURL == "" {
		return feed.NewHub(), nil
	}
	n, err := feed.NewRedisNotifier(ctx, config.RedisURL, config.RedisChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis notifier: %w", err)
	}
	f.logger.Info("Initialized Redis change notifier", "channel", config.RedisChannel)
	return n, nil
}
