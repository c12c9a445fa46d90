package sync

import (
	"sort"
	"time"

	"leobook/core/schema"

	"go.uber.org/zap"
)

// Detector computes a table's ChangeSet: every row whose last_updated
// exceeds its watermark, plus any new tombstones. It works on a snapshot
// taken under the store lock; no I/O of its own.
type Detector struct {
	reg   *schema.Registry
	marks *Watermarks
	log   *zap.Logger
}

// NewDetector creates a change detector over the given watermark map.
func NewDetector(reg *schema.Registry, marks *Watermarks, log *zap.Logger) *Detector {
	return &Detector{reg: reg, marks: marks, log: log}
}

// Detect scans the snapshot and returns the ChangeSet relative to the
// current watermarks. Malformed rows are dropped with a warning and counted
// in the second return value; they are never retried, so one poison row
// cannot block its table. A tombstone with no watermark is still included:
// pushing a delete for a key the remote never had is a harmless no-op,
// while skipping one risks leaving a stale remote row.
func (d *Detector) Detect(table string, snapshot []schema.Row) (*schema.ChangeSet, int, error) {
	tbl, err := d.reg.Lookup(table)
	if err != nil {
		return nil, 0, err
	}

	cs := &schema.ChangeSet{Table: table, Marks: make(map[string]time.Time)}
	dropped := 0

	for _, row := range snapshot {
		key, err := tbl.Key(row)
		if err != nil {
			d.warnDrop(table, "", err)
			dropped++
			continue
		}
		ts, err := row.LastUpdated()
		if err != nil {
			d.warnDrop(table, key, err)
			dropped++
			continue
		}

		mark, marked := d.marks.Get(table, key)
		if marked && !ts.After(mark) {
			continue
		}

		if row.IsTombstone() {
			cs.Deletes = append(cs.Deletes, key)
			cs.Marks[key] = ts
			continue
		}

		if _, err := tbl.Coerce(row); err != nil {
			d.warnDrop(table, key, err)
			dropped++
			continue
		}
		cs.Upserts = append(cs.Upserts, row)
		cs.Marks[key] = ts
	}

	sortChangeSet(tbl, cs)
	return cs, dropped, nil
}

func (d *Detector) warnDrop(table, key string, err error) {
	d.log.Warn("Dropping malformed row from ChangeSet",
		zap.String("table", table),
		zap.String("key", key),
		zap.Error(err))
}

// sortChangeSet orders changes oldest-first (then by key) so that a bounded
// micro-sync push truncates the newest work, which is re-detected next
// round, and the output is deterministic.
func sortChangeSet(tbl *schema.Table, cs *schema.ChangeSet) {
	sort.Slice(cs.Upserts, func(i, j int) bool {
		ki, _ := tbl.Key(cs.Upserts[i])
		kj, _ := tbl.Key(cs.Upserts[j])
		ti := cs.Marks[ki]
		tj := cs.Marks[kj]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ki < kj
	})
	sort.Slice(cs.Deletes, func(i, j int) bool {
		ti := cs.Marks[cs.Deletes[i]]
		tj := cs.Marks[cs.Deletes[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return cs.Deletes[i] < cs.Deletes[j]
	})
}

// bound truncates a ChangeSet to at most limit changes, deletes first (they
// are cheap and unblock recreations), and prunes Marks to the kept keys.
func bound(tbl *schema.Table, cs *schema.ChangeSet, limit int) *schema.ChangeSet {
	if limit <= 0 || cs.Size() <= limit {
		return cs
	}

	out := &schema.ChangeSet{Table: cs.Table, Marks: make(map[string]time.Time)}
	for _, key := range cs.Deletes {
		if out.Size() >= limit {
			break
		}
		out.Deletes = append(out.Deletes, key)
		out.Marks[key] = cs.Marks[key]
	}
	for _, row := range cs.Upserts {
		if out.Size() >= limit {
			break
		}
		key, _ := tbl.Key(row)
		out.Upserts = append(out.Upserts, row)
		out.Marks[key] = cs.Marks[key]
	}
	return out
}
