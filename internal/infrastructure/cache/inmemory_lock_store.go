package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryLockStore implements LockStore for a single process.
// Expired leases are taken over on acquire and swept periodically.
type InMemoryLockStore struct {
	mu        sync.Mutex
	leases    map[string]lease
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryLockStore creates the store and starts its cleanup goroutine
func NewInMemoryLockStore() *InMemoryLockStore {
	return newInMemoryLockStore(time.Minute, time.Now)
}

func newInMemoryLockStore(sweepEvery time.Duration, now func() time.Time) *InMemoryLockStore {
	s := &InMemoryLockStore{
		leases:   make(map[string]lease),
		now:      now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop(sweepEvery)
	return s
}

// TryAcquire takes key if it is free or its lease expired
func (s *InMemoryLockStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, held := s.leases[key]; held && now.Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release frees key if it still holds token
func (s *InMemoryLockStore) Release(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, held := s.leases[key]; held && l.token == token {
		delete(s.leases, key)
	}
	return nil
}

// Len returns the number of unexpired leases
func (s *InMemoryLockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for _, l := range s.leases {
		if now.Before(l.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryLockStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryLockStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryLockStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, l := range s.leases {
		if !now.Before(l.expiresAt) {
			delete(s.leases, key)
		}
	}
}

var _ shared.LockStore = (*InMemoryLockStore)(nil)
