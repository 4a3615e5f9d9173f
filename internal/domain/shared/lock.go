package shared

import (
	"context"
	"time"
)

// LockStore hands out short-lived exclusive leases on string keys.
// It backs the per-client allocation lock and the per-invoice in-flight guard.
type LockStore interface {
	// TryAcquire takes the lease on key for ttl.
	// Returns a release token and true if the lease was taken, "" and false if it is held elsewhere.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// Release gives the lease back. Releasing with a stale token is a no-op.
	Release(ctx context.Context, key, token string) error

	// Close closes the store and releases resources
	Close() error
}

// LockConfig holds configuration for lock acquisition
type LockConfig struct {
	// TTL bounds how long a crashed holder can block others
	TTL time.Duration

	// Wait is how long Acquire polls before giving up with ErrConcurrencyConflict
	Wait time.Duration

	// PollInterval is the delay between acquisition attempts
	PollInterval time.Duration
}

// DefaultLockConfig returns the default lock configuration
func DefaultLockConfig() LockConfig {
	return LockConfig{
		TTL:          30 * time.Second,
		Wait:         5 * time.Second,
		PollInterval: 25 * time.Millisecond,
	}
}

// Acquire polls store until the lease on key is taken, cfg.Wait elapses or ctx is done.
// The returned func releases the lease; it is safe to call more than once.
func Acquire(ctx context.Context, store LockStore, key string, cfg LockConfig) (func(), error) {
	deadline := time.Now().Add(cfg.Wait)
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}

	for {
		token, ok, err := store.TryAcquire(ctx, key, cfg.TTL)
		if err != nil {
			return nil, NewStoreError("lock acquire", err)
		}
		if ok {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				// Release must not depend on the caller's (possibly cancelled) context
				_ = store.Release(context.WithoutCancel(ctx), key, token)
			}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, ErrConcurrencyConflict
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// TryAcquireOnce takes the lease on key without waiting.
// A held lease yields ErrOperationInProgress.
func TryAcquireOnce(ctx context.Context, store LockStore, key string, ttl time.Duration) (func(), error) {
	token, ok, err := store.TryAcquire(ctx, key, ttl)
	if err != nil {
		return nil, NewStoreError("lock acquire", err)
	}
	if !ok {
		return nil, ErrOperationInProgress
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		_ = store.Release(context.WithoutCancel(ctx), key, token)
	}, nil
}
