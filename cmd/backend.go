package main

import (
	"context"
	"fmt"

	"github.com/okian/playstats/internal/adapters/history"
	"github.com/okian/playstats/internal/adapters/repository"
	mongostore "github.com/okian/playstats/internal/adapters/repository/mongo"
	"github.com/okian/playstats/internal/adapters/repository/postgres"
	redisstore "github.com/okian/playstats/internal/adapters/repository/redis"
	"github.com/okian/playstats/internal/config"
)

// backend is the storage selected by configuration. The store owns the
// connection shared with the recorder, so closing the store releases both.
type backend struct {
	store    repository.Store
	recorder history.Recorder // nil when history is disabled
}

// openBackend connects the configured storage and wraps the store in the
// instrumentation and timeout middlewares.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b, err := connectBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	if !cfg.HistoryEnabled {
		b.recorder = nil
	}

	b.store = repository.InstrumentMiddleware(cfg.Backend)(b.store)
	b.store = repository.TimeoutMiddleware(cfg.StorageTimeout())(b.store)
	return b, nil
}

func connectBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		store, err := postgres.NewStore(db, cfg.PostgresSchema)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rec, err := postgres.NewHistory(db, cfg.PostgresSchema)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{store: store, recorder: rec}, nil

	case config.BackendRedis:
		pool := redisstore.Pool(cfg.RedisAddr, cfg.RedisPassword)
		return &backend{
			store:    redisstore.NewStore(pool, cfg.RedisPrefix),
			recorder: redisstore.NewHistory(pool, cfg.RedisPrefix, cfg.HistoryCap),
		}, nil

	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &backend{store: mongostore.NewStore(db), recorder: mongostore.NewHistory(db)}, nil

	case config.BackendMemory:
		return &backend{store: repository.NewTreapStore(), recorder: history.NewRing(cfg.HistoryCap)}, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
}
