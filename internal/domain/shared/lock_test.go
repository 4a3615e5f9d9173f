package shared

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockStore is a minimal LockStore for exercising the acquire helpers
type fakeLockStore struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	attempts int
	released []string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{held: make(map[string]string)}
}

func (s *fakeLockStore) TryAcquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return "", false, s.err
	}
	if _, ok := s.held[key]; ok {
		return "", false, nil
	}
	token := key + "-token"
	s.held[key] = token
	return token, true, nil
}

func (s *fakeLockStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[key] == token {
		delete(s.held, key)
	}
	s.released = append(s.released, key)
	return nil
}

func (s *fakeLockStore) Close() error { return nil }

func (s *fakeLockStore) isHeld(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[key]
	return ok
}

func TestAcquire(t *testing.T) {
	cfg := LockConfig{TTL: time.Second, Wait: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond}

	t.Run("acquires and releases once", func(t *testing.T) {
		store := newFakeLockStore()
		release, err := Acquire(context.Background(), store, "lock:client:1", cfg)
		require.NoError(t, err)
		assert.True(t, store.isHeld("lock:client:1"))

		release()
		release()
		assert.False(t, store.isHeld("lock:client:1"))
		assert.Len(t, store.released, 1)
	})

	t.Run("times out with concurrency conflict", func(t *testing.T) {
		store := newFakeLockStore()
		store.held["lock:client:1"] = "other"

		_, err := Acquire(context.Background(), store, "lock:client:1", cfg)
		assert.ErrorIs(t, err, ErrConcurrencyConflict)
		assert.Greater(t, store.attempts, 1)
	})

	t.Run("waits for holder to release", func(t *testing.T) {
		store := newFakeLockStore()
		first, err := Acquire(context.Background(), store, "k", cfg)
		require.NoError(t, err)

		go func() {
			time.Sleep(10 * time.Millisecond)
			first()
		}()

		second, err := Acquire(context.Background(), store, "k", LockConfig{TTL: time.Second, Wait: time.Second, PollInterval: 2 * time.Millisecond})
		require.NoError(t, err)
		second()
	})

	t.Run("store failure is a store error", func(t *testing.T) {
		store := newFakeLockStore()
		store.err = errors.New("connection refused")

		_, err := Acquire(context.Background(), store, "k", cfg)
		assert.ErrorIs(t, err, ErrStore)
		assert.True(t, IsRetryable(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		store := newFakeLockStore()
		store.held["k"] = "other"
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Acquire(ctx, store, "k", LockConfig{TTL: time.Second, Wait: time.Second, PollInterval: time.Millisecond})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTryAcquireOnce(t *testing.T) {
	store := newFakeLockStore()

	release, err := TryAcquireOnce(context.Background(), store, "inflight:invoice:1", time.Second)
	require.NoError(t, err)

	_, err = TryAcquireOnce(context.Background(), store, "inflight:invoice:1", time.Second)
	assert.ErrorIs(t, err, ErrOperationInProgress)
	assert.False(t, IsRetryable(err))

	release()
	release2, err := TryAcquireOnce(context.Background(), store, "inflight:invoice:1", time.Second)
	require.NoError(t, err)
	release2()
}
