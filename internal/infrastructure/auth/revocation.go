package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records token ids (jti) that must be rejected before they expire
type RevocationList interface {
	// Revoke rejects jti for ttl, which should be the token's remaining lifetime
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationList implements RevocationList using Redis
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList wraps an existing Redis client
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	return &RedisRevocationList{
		client:    client,
		keyPrefix: keyPrefix + "token:revoked:",
	}
}

// Revoke stores jti with a TTL
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks whether jti is present
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList is a single-process RevocationList
type InMemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time // jti -> expiry
	now     func() time.Time
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke adds jti until ttl elapses
func (r *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[jti] = r.now().Add(ttl)
	return nil
}

// IsRevoked reports whether jti is revoked, dropping expired entries
func (r *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry, ok := r.entries[jti]
	if !ok {
		return false, nil
	}
	if r.now().After(expiry) {
		delete(r.entries, jti)
		return false, nil
	}
	return true, nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
