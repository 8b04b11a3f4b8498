package store

import (
	"context"
	"fmt"
	"time"

	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the configured Store backend into the fx graph
var Module = fx.Options(
	fx.Provide(NewStore),
)

// NewStore builds the backend selected by storage.backend. The Redis backend
// is pinged on startup and closed on shutdown through the fx lifecycle.
func NewStore(lc fx.Lifecycle, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Info("Using in-memory credential store")
		return NewMemoryStore(time.Now), nil

	case config.StorageRedis:
		rs := NewRedisStore(cfg.Storage.Redis)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := rs.Ping(ctx); err != nil {
					return err
				}
				logger.Info("Connected to redis", zap.String("addr", cfg.Storage.Redis.Addr))
				return nil
			},
			OnStop: func(context.Context) error {
				return rs.Close()
			},
		})
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
