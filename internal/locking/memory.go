package locking

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker. It is the fallback when Redis is
// not configured and the implementation used by tests. Only safe for
// single-instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[string]*sync.Mutex{}}
}

func (l *MemoryLocker) forKey(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *MemoryLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	m := l.forKey(key)

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		defer m.Unlock()
		return fn()
	case <-ctx.Done():
		go func() {
			<-acquired
			m.Unlock()
		}()
		return ctx.Err()
	case <-time.After(acquireBudget):
		go func() {
			<-acquired
			m.Unlock()
		}()
		return ErrLockNotAcquired
	}
}

var _ Locker = (*MemoryLocker)(nil)
