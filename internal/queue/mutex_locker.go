package queue

import (
	"context"
	"sync"
	"time"
)

// MutexLocker is a process-local Locker. A one-slot channel is used instead of
// sync.Mutex so that waiting can be bounded.
type MutexLocker struct {
	slot chan struct{}
	wait time.Duration
}

func NewMutexLocker(wait time.Duration) *MutexLocker {
	return &MutexLocker{
		slot: make(chan struct{}, 1),
		wait: wait,
	}
}

func (m *MutexLocker) Acquire(ctx context.Context) (func(), error) {
	var timeout <-chan time.Time
	if m.wait > 0 {
		timer := time.NewTimer(m.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case m.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-m.slot })
		}, nil
	case <-timeout:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
