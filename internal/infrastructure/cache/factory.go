package cache

import (
	"context"
	"fmt"

	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/config"
	"go.uber.org/zap"
)

// LockStoreFactory creates the lock store selected by configuration
type LockStoreFactory struct {
	lockConfig  config.LockConfig
	redisConfig config.RedisConfig
	logger      *zap.Logger
}

// LockStoreFactoryOption is a functional option for configuring the factory
type LockStoreFactoryOption func(*LockStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockStoreFactoryOption {
	return func(f *LockStoreFactory) {
		f.logger = logger
	}
}

// NewLockStoreFactory creates a new factory
func NewLockStoreFactory(lockCfg config.LockConfig, redisCfg config.RedisConfig, opts ...LockStoreFactoryOption) *LockStoreFactory {
	f := &LockStoreFactory{
		lockConfig:  lockCfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store for backend "redis" and an in-memory store for "memory".
// A configured but unreachable Redis is an error, never a fallback to memory.
func (f *LockStoreFactory) CreateStore(ctx context.Context) (shared.LockStore, error) {
	switch f.lockConfig.Backend {
	case "redis":
		store, err := NewRedisLockStore(ctx, RedisConfig{
			Addr:     f.redisConfig.Addr(),
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		}, f.lockConfig.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis lock store: %w", err)
		}
		f.logger.Info("using Redis lock store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	case "", "memory":
		f.logger.Warn("using in-memory lock store; settlement is serialized within this process only")
		return NewInMemoryLockStore(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", f.lockConfig.Backend)
	}
}
