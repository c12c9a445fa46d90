package sync

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes [][]string
	notify  chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{notify: make(chan struct{}, 16)}
}

func (f *flushRecorder) flush(_ context.Context, tables []string) {
	sort.Strings(tables)
	f.mu.Lock()
	f.flushes = append(f.flushes, tables)
	f.mu.Unlock()
	f.notify <- struct{}{}
}

func (f *flushRecorder) all() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.flushes))
	copy(out, f.flushes)
	return out
}

func TestMicroBatcher_SizeTrigger(t *testing.T) {
	rec := newFlushRecorder()
	b := NewMicroBatcher(3, time.Hour, rec.flush)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Add("live_scores", 2)
	assert.Empty(t, rec.all())

	b.Add("live_scores", 1)
	select {
	case <-rec.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("size trigger did not flush")
	}

	flushes := rec.all()
	require.Len(t, flushes, 1)
	assert.Equal(t, []string{"live_scores"}, flushes[0])
	assert.Zero(t, b.Pending("live_scores"))
}

func TestMicroBatcher_IntervalTrigger(t *testing.T) {
	rec := newFlushRecorder()
	b := NewMicroBatcher(100, 30*time.Millisecond, rec.flush)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Add("predictions", 1)
	b.Add("live_scores", 2)

	select {
	case <-rec.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("interval trigger did not flush")
	}

	flushes := rec.all()
	require.NotEmpty(t, flushes)
	assert.Equal(t, []string{"live_scores", "predictions"}, flushes[0])
}

func TestMicroBatcher_SizeTriggerFlushesOnlyFullTables(t *testing.T) {
	rec := newFlushRecorder()
	b := NewMicroBatcher(2, time.Hour, rec.flush)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Add("predictions", 1)
	b.Add("live_scores", 2)

	select {
	case <-rec.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("size trigger did not flush")
	}

	flushes := rec.all()
	require.Len(t, flushes, 1)
	assert.Equal(t, []string{"live_scores"}, flushes[0])
	// The under-threshold table stays queued for the interval flush.
	assert.Equal(t, 1, b.Pending("predictions"))
}

func TestMicroBatcher_IgnoresNonPositiveCounts(t *testing.T) {
	b := NewMicroBatcher(2, time.Hour, func(context.Context, []string) {})
	b.Add("live_scores", 0)
	b.Add("live_scores", -3)
	assert.Zero(t, b.Pending("live_scores"))
}
