package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

const defaultKeyPrefix = "invoice:"

// releaseScript deletes the key only while it still holds the caller's token,
// so a holder whose lease expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockStore implements LockStore with SET NX PX leases.
// It serializes settlement work across every API instance sharing the Redis.
type RedisLockStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisLockStore connects to Redis and verifies the connection
func NewRedisLockStore(ctx context.Context, cfg RedisConfig, keyPrefix string) (*RedisLockStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockStoreWithClient(client, keyPrefix), nil
}

// NewRedisLockStoreWithClient wraps an existing client
func NewRedisLockStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisLockStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLockStore{client: client, keyPrefix: keyPrefix}
}

// TryAcquire sets key to a fresh token if it is absent
func (s *RedisLockStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes key if it still holds token
func (s *RedisLockStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisLockStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisLockStore) Close() error {
	return s.client.Close()
}

var _ shared.LockStore = (*RedisLockStore)(nil)
