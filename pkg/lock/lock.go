// Package lock provides mutual exclusion for resources shared between
// goroutines (Local) or between processes (Redis), with a bounded wait.
package lock

import (
	"context"
	"time"

	apperrors "github.com/vaidashi/phone-order-api/pkg/errors"
)

// ErrTimeout is returned when a lock could not be acquired within the wait timeout.
// It is retryable so outbox jobs blocked on a lock are retried later.
var ErrTimeout = apperrors.NewTimeoutError("timed out waiting for lock").WithCode("lock_timeout")

// Locker acquires an exclusive lock and returns the function that releases it
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process lock backed by a buffered channel so waits can time out
type Local struct {
	ch      chan struct{}
	timeout time.Duration
}

// NewLocal creates an in-process lock with the given wait timeout
func NewLocal(timeout time.Duration) *Local {
	return &Local{
		ch:      make(chan struct{}, 1),
		timeout: timeout,
	}
}

// Acquire blocks until the lock is held, the timeout elapses, or ctx is done
func (l *Local) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
