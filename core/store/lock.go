package store

import (
	"context"
	"fmt"
	"sync"

	"leobook/core/syncerr"
)

// fifoLock is a fair mutual-exclusion lock: waiters are granted the lock in
// arrival order, so a burst of workers cannot starve the streamer or the
// sync orchestrator. Each Store owns exactly one; it is never shared
// globally.
type fifoLock struct {
	mu     sync.Mutex
	locked bool
	queue  []chan struct{}
}

// Acquire blocks until the lock is granted or ctx expires. A context
// deadline maps to the caller's lock budget: on expiry the operation fails
// with ErrLockTimeout and the process continues.
func (l *fifoLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if !l.locked {
		l.locked = true
		l.mu.Unlock()
		return nil
	}
	grant := make(chan struct{})
	l.queue = append(l.queue, grant)
	l.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, ch := range l.queue {
			if ch == grant {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return fmt.Errorf("%w: %v", syncerr.ErrLockTimeout, ctx.Err())
			}
		}
		l.mu.Unlock()
		// The grant raced the deadline and we now own the lock; hand it to
		// the next waiter and still report the timeout.
		l.Release()
		return fmt.Errorf("%w: %v", syncerr.ErrLockTimeout, ctx.Err())
	}
}

// Release hands the lock to the oldest waiter, or unlocks if none wait.
func (l *fifoLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		grant := l.queue[0]
		l.queue = l.queue[1:]
		close(grant)
		return
	}
	l.locked = false
}
