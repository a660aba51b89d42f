package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"rkas/internal/amqp"
	applog "rkas/internal/log"
	"rkas/internal/ports"
	remotemem "rkas/internal/remote/memory"
	"rkas/internal/remote/postgres"
	"rkas/internal/storage"
	kvmem "rkas/internal/storage/memory"
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

// CreateBackend implements Factory.CreateBackend. Only an unusable local
// cache is fatal; remote and messaging problems degrade to local-only.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cache, closeCache, err := f.createCache(config)
	if err != nil {
		return nil, err
	}
	cleanups := []CleanupFunc{closeCache}

	remote, closeRemote, err := f.createRemote(ctx, config)
	if err != nil {
		f.logger.WarnContext(ctx, "Remote store unavailable, running local-only", "error", err)
	} else if closeRemote != nil {
		cleanups = append(cleanups, closeRemote)
	}

	var events *amqp.Client
	if config.AMQPURL != "" {
		events, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
			events = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			cleanups = append(cleanups, events.Close)
		}
	}

	return &BackendResult{
		Cache:   cache,
		Remote:  remote,
		Events:  events,
		Cleanup: joinCleanups(cleanups),
	}, nil
}

func (f *DefaultFactory) createCache(config Config) (ports.KV, CleanupFunc, error) {
	if config.CacheType == MemoryCache {
		f.logger.Info("Initialized in-memory cache")
		return kvmem.New(), func() error { return nil }, nil
	}

	if dir := filepath.Dir(config.CachePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	repo, err := storage.NewSQLiteRepository(config.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite cache: %w", err)
	}
	f.logger.Info("Initialized SQLite cache", "db_path", config.CachePath)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (ports.Remote, CleanupFunc, error) {
	switch config.RemoteType {
	case NoRemote:
		f.logger.Info("No remote store configured, running local-only")
		return nil, nil, nil
	case MemoryRemote:
		f.logger.Info("Initialized in-memory remote store")
		return remotemem.New(), nil, nil
	}

	store, err := postgres.New(postgres.Config{URL: config.RemoteURL, Key: config.RemoteKey})
	if err != nil {
		return nil, nil, err
	}
	fields := applog.NewFields().WithRemote(config.RemoteURL)
	// An unreachable database still gets a store; the loader and the
	// sync processor report and survive each failed call
	if err := store.Ping(ctx); err != nil {
		f.logger.WarnContext(ctx, "Remote store not reachable at startup", append(fields.ToSlice(), "error", err)...)
	} else if config.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			f.logger.WarnContext(ctx, "Failed to ensure remote schema", "error", err)
		}
	}
	f.logger.InfoContext(ctx, "Initialized Postgres remote store", fields.ToSlice()...)
	return store, store.Close, nil
}

func joinCleanups(fns []CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		// Reverse order of acquisition
		for i := len(fns) - 1; i >= 0; i-- {
			if err := fns[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
