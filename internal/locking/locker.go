package locking

import (
	"context"
	"sync"
	"time"
)

// Locker serializes work on a logical key: a reporter id for the
// create-vs-continue decision, a ticket id for lifecycle transitions.
// Acquire blocks until the key is available or ctx is done; the returned
// release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// memoryLocker serializes keys within a single process.
type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemoryLocker creates a process-local locker. Suitable for tests and
// single-instance deployments without Redis.
func NewMemoryLocker() Locker {
	return &memoryLocker{locks: make(map[string]chan struct{})}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		held, ok := l.locks[key]
		if !ok {
			ch := make(chan struct{})
			l.locks[key] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
			// holder released; retry the claim
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// retryInterval paces polling-based acquisition for distributed lockers.
const retryInterval = 25 * time.Millisecond
