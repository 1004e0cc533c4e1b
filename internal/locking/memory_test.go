package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "appt:lock:p1:20300107", func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()

	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "key-a", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// outra chave não espera pela primeira
	done := make(chan error, 1)
	go func() {
		done <- locker.WithLock(context.Background(), "key-b", func() error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("independent key blocked behind an unrelated lock")
	}
	close(release)
}

func TestMemoryLockerContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()

	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "busy", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, "busy", func() error {
		t.Fatal("critical section must not run after the context expired")
		return nil
	})
	assert.Error(t, err)

	close(release)
}

func TestMemoryLockerPropagatesError(t *testing.T) {
	locker := NewMemoryLocker()

	want := ErrLockNotAcquired // qualquer erro serve, este já está à mão
	err := locker.WithLock(context.Background(), "k", func() error { return want })
	assert.Equal(t, want, err)
}
