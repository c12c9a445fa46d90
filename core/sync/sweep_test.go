package sync

import (
	"context"
	"testing"
	"time"

	"leobook/core/schema"
	"leobook/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweeper_TombstonesExpiredRows(t *testing.T) {
	st, err := store.Open(store.Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := liveRow("F1", now.Add(-4*time.Hour))
	fresh := liveRow("F2", now.Add(-5*time.Minute))
	_, err = st.UpsertRows(ctx, "live_scores", []schema.Row{stale, fresh})
	require.NoError(t, err)

	sw := NewSweeper(st, Config{LiveTTLMinutes: 180, SweepIntervalSeconds: 60}, zap.NewNop())

	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := st.ReadTable(ctx, "live_scores")
	require.NoError(t, err)
	byKey := make(map[string]schema.Row)
	for _, row := range rows {
		byKey[row["fixture_id"]] = row
	}
	assert.True(t, byKey["F1"].IsTombstone())
	assert.False(t, byKey["F2"].IsTombstone())

	// The tombstone carries a fresh timestamp so the next micro-sync
	// propagates the delete.
	ts, err := byKey["F1"].LastUpdated()
	require.NoError(t, err)
	assert.True(t, ts.After(now.Add(-time.Minute)))
}

func TestSweeper_NoExpiredRowsIsNoOp(t *testing.T) {
	st, err := store.Open(store.Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = st.UpsertRows(ctx, "live_scores", []schema.Row{liveRow("F1", time.Now().UTC())})
	require.NoError(t, err)

	sw := NewSweeper(st, Config{LiveTTLMinutes: 180}, zap.NewNop())
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_SkipsExistingTombstones(t *testing.T) {
	st, err := store.Open(store.Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	old := time.Now().UTC().Add(-6 * time.Hour)
	_, err = st.UpsertRows(ctx, "live_scores", []schema.Row{liveRow("F1", old)})
	require.NoError(t, err)
	_, err = st.DeleteRows(ctx, "live_scores", []string{"F1"}, old.Add(time.Minute))
	require.NoError(t, err)

	sw := NewSweeper(st, Config{LiveTTLMinutes: 180}, zap.NewNop())
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already-tombstoned rows must not be re-tombstoned")
}
