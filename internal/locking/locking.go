package locking

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when the lock is held by someone else and
// the retry budget ran out.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serializes critical sections keyed by string. Booking uses keys of
// the form appt:lock:{providerId}:{yyyymmdd} so concurrent reservations for
// the same provider and day are checked one at a time.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

const (
	lockTTL       = 10 * time.Second
	acquireBudget = 3 * time.Second
	retryDelay    = 50 * time.Millisecond
)
