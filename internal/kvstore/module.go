package kvstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ronappleton/rubricflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Provide(New)
}

// Open builds the backend named by cfg.Driver, wrapped in a read cache when
// cfg.CacheTTL is positive and the backend is not in memory. The returned
// close func releases the backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func() error, error) {
	var (
		backend Store
		closer  io.Closer
	)
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		s := NewRedisStore(client, WithPrefix(cfg.Redis.Prefix))
		backend, closer = s, s
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = s, s
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		backend, closer = s, s
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	ttl := config.Duration(cfg.CacheTTL, 0)
	if ttl <= 0 {
		return backend, closer.Close, nil
	}
	cached := NewCachedStore(backend, ttl)
	evictCtx, stop := context.WithCancel(context.Background())
	go cached.StartEviction(evictCtx)
	return cached, func() error {
		stop()
		return closer.Close()
	}, nil
}

// New is the fx constructor; the backend is closed on application stop.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, closeFn, err := Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Info("kv store ready", zap.String("driver", cfg.Store.Driver))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closeFn()
		},
	})
	return store, nil
}
