package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"leobook/core/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Dir: t.TempDir(), LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func scheduleRow(fixture string, ts time.Time) schema.Row {
	row := schema.Row{
		"fixture_id": fixture,
		"home_team":  "Alpha FC",
		"away_team":  "Beta FC",
		"status":     "scheduled",
	}
	row.SetLastUpdated(ts)
	return row
}

func TestStore_UpsertAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	applied, err := s.UpsertRows(ctx, "schedules", []schema.Row{scheduleRow("F1", ts)})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rows, err := s.ReadTable(ctx, "schedules")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "F1", rows[0]["fixture_id"])
}

func TestStore_StaleWriteIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)

	_, err := s.UpsertRows(ctx, "schedules", []schema.Row{scheduleRow("F1", newer)})
	require.NoError(t, err)

	stale := scheduleRow("F1", older)
	stale["status"] = "stale"
	applied, err := s.UpsertRows(ctx, "schedules", []schema.Row{stale})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	rows, err := s.ReadTable(ctx, "schedules")
	require.NoError(t, err)
	assert.Equal(t, "scheduled", rows[0]["status"])
}

func TestStore_EqualTimestampReplaces(t *testing.T) {
	// A merge that prefers the remote copy on timestamp ties must be able
	// to apply a row with an equal last_updated.
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	_, err := s.UpsertRows(ctx, "schedules", []schema.Row{scheduleRow("F1", ts)})
	require.NoError(t, err)

	replacement := scheduleRow("F1", ts)
	replacement["status"] = "postponed"
	applied, err := s.UpsertRows(ctx, "schedules", []schema.Row{replacement})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rows, err := s.ReadTable(ctx, "schedules")
	require.NoError(t, err)
	assert.Equal(t, "postponed", rows[0]["status"])
}

func TestStore_DurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Now().UTC()

	s, err := Open(Config{Dir: dir, LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	_, err = s.UpsertRows(ctx, "teams", []schema.Row{func() schema.Row {
		r := schema.Row{"team_id": "T1", "team_name": "Alpha FC", "region": "England"}
		r.SetLastUpdated(ts)
		return r
	}()})
	require.NoError(t, err)

	reopened, err := Open(Config{Dir: dir, LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)

	rows, err := reopened.ReadTable(ctx, "teams")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha FC", rows[0]["team_name"])
}

func TestStore_LocalOnlyFieldSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Dir: dir, LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)

	row := scheduleRow("F1", time.Now().UTC())
	row["enrichment_state"] = "deep"
	_, err = s.UpsertRows(ctx, "schedules", []schema.Row{row})
	require.NoError(t, err)

	reopened, err := Open(Config{Dir: dir, LockTimeoutSeconds: 5}, schema.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	rows, err := reopened.ReadTable(ctx, "schedules")
	require.NoError(t, err)
	assert.Equal(t, "deep", rows[0]["enrichment_state"])
}

func TestStore_DeleteRowsWritesTombstone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	_, err := s.UpsertRows(ctx, "live_scores", []schema.Row{func() schema.Row {
		r := schema.Row{"fixture_id": "F9", "status": "live"}
		r.SetLastUpdated(ts)
		return r
	}()})
	require.NoError(t, err)

	applied, err := s.DeleteRows(ctx, "live_scores", []string{"F9"}, ts.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rows, err := s.ReadTable(ctx, "live_scores")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsTombstone())
}

func TestStore_TombstoneThenRecreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	_, err := s.DeleteRows(ctx, "live_scores", []string{"F9"}, ts)
	require.NoError(t, err)

	fresh := schema.Row{"fixture_id": "F9", "status": "live", "minute": "1"}
	fresh.SetLastUpdated(ts.Add(time.Minute))
	applied, err := s.UpsertRows(ctx, "live_scores", []schema.Row{fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	rows, err := s.ReadTable(ctx, "live_scores")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsTombstone())
}

func TestStore_ConcurrentWritersNoTornWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			row := schema.Row{
				"fixture_id": "F1",
				"home_team":  fmt.Sprintf("writer-%d", i),
				"away_team":  fmt.Sprintf("writer-%d", i),
			}
			row.SetLastUpdated(base.Add(time.Duration(i) * time.Millisecond))
			_, err := s.UpsertRows(ctx, "schedules", []schema.Row{row})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := s.ReadTable(ctx, "schedules")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// The final row is exactly one writer's value, not a blend.
	assert.Equal(t, rows[0]["home_team"], rows[0]["away_team"])
	// Last-writer-wins: the highest timestamp survived.
	assert.Equal(t, fmt.Sprintf("writer-%d", writers-1), rows[0]["home_team"])
}

func TestStore_MutationHook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	counts := map[string]int{}
	s.SetMutationHook(func(table string, n int) {
		mu.Lock()
		counts[table] += n
		mu.Unlock()
	})

	_, err := s.UpsertRows(ctx, "predictions", []schema.Row{func() schema.Row {
		r := schema.Row{"fixture_id": "F1", "market": "1X2"}
		r.SetLastUpdated(time.Now().UTC())
		return r
	}()})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counts["predictions"])
}
