package queue

import (
	"context"
	"errors"
)

// Locker serializes the operator availability decision across callers.
type Locker interface {
	// Acquire blocks until the lock is held, the wait bound elapses or ctx is
	// done. The returned release func is safe to call more than once.
	Acquire(ctx context.Context) (release func(), err error)
}

var ErrLockTimeout = errors.New("lock wait timed out")
