package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"leobook/core/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFifoLock_Timeout(t *testing.T) {
	l := &fifoLock{}
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, syncerr.ErrLockTimeout)

	// The holder is unaffected and can still release.
	l.Release()
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestFifoLock_FIFOOrder(t *testing.T) {
	l := &fifoLock{}
	require.NoError(t, l.Acquire(context.Background()))

	const waiters = 5
	var (
		mu    sync.Mutex
		order []int
		ready sync.WaitGroup
		done  sync.WaitGroup
	)

	for i := 0; i < waiters; i++ {
		i := i
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			// Serialize enqueue order: waiter i queues before waiter i+1.
			ready.Done()
			assert.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Release()
		}()
		// Give the goroutine time to enter the wait queue before
		// starting the next one.
		time.Sleep(10 * time.Millisecond)
	}

	ready.Wait()
	l.Release()
	done.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFifoLock_AbandonedWaiterIsSkipped(t *testing.T) {
	l := &fifoLock{}
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	timedOut := make(chan error, 1)
	go func() {
		timedOut <- l.Acquire(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-timedOut, syncerr.ErrLockTimeout)

	// Release must not hand the lock to the abandoned waiter.
	l.Release()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, l.Acquire(ctx2))
	l.Release()
}
