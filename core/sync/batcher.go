package sync

import (
	"context"
	"sync"
	"time"
)

// FlushFunc pushes the queued tables; invoked by the micro-batcher on a
// size or time trigger.
type FlushFunc func(ctx context.Context, tables []string)

// MicroBatcher accumulates local write notifications for latency-sensitive
// tables and triggers a micro-sync when a table's queued count reaches the
// flush threshold or when the interval elapses, whichever comes first. It
// is the bounded work queue between producers and the orchestrator: it
// holds counts, never rows, so the snapshot taken at flush time always
// reflects every write that preceded it.
type MicroBatcher struct {
	mu        sync.Mutex
	pending   map[string]int
	threshold int
	interval  time.Duration
	flush     FlushFunc
	kick      chan struct{}
}

// NewMicroBatcher creates a batcher flushing via fn.
func NewMicroBatcher(threshold int, interval time.Duration, fn FlushFunc) *MicroBatcher {
	if threshold <= 0 {
		threshold = 25
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MicroBatcher{
		pending:   make(map[string]int),
		threshold: threshold,
		interval:  interval,
		flush:     fn,
		kick:      make(chan struct{}, 1),
	}
}

// Add records n local writes against a table. Reaching the threshold wakes
// the run loop immediately instead of waiting for the ticker.
func (b *MicroBatcher) Add(table string, n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	b.pending[table] += n
	due := b.pending[table] >= b.threshold
	b.mu.Unlock()

	if due {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the queued count for a table.
func (b *MicroBatcher) Pending(table string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[table]
}

// Run drives the flush loop until ctx is cancelled. A final flush on
// shutdown is not attempted: the watermark map guarantees queued work is
// re-detected on the next start.
func (b *MicroBatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.flushDue(ctx, false)
		case <-b.kick:
			b.flushDue(ctx, true)
		}
	}
}

// flushDue drains the queued tables and invokes the flush callback.
// onlyFull restricts the flush to tables at or above the threshold (the
// size trigger); the ticker flushes everything pending.
func (b *MicroBatcher) flushDue(ctx context.Context, onlyFull bool) {
	b.mu.Lock()
	var tables []string
	for table, n := range b.pending {
		if onlyFull && n < b.threshold {
			continue
		}
		tables = append(tables, table)
		delete(b.pending, table)
	}
	b.mu.Unlock()

	if len(tables) > 0 {
		b.flush(ctx, tables)
	}
}
