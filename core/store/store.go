package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"leobook/core/schema"
	"leobook/core/syncerr"

	"go.uber.org/zap"
)

// Store is the flat-file local store: one CSV file per table, an in-memory
// row index, and a single fair write lock guarding every mutation. The lock
// is owned by the Store value, so separate Store instances (for example in
// tests) never share state.
//
// Mutations hold the lock for the in-memory change plus the durable flush,
// never for any preceding computation and never across network calls.
// Writes are flushed with a temp-file-plus-atomic-rename before the lock
// releases, so a crash after release never loses an acknowledged write.
type Store struct {
	cfg Config
	reg *schema.Registry
	log *zap.Logger

	lock *fifoLock

	// tables maps table name -> primary key -> row. Exactly one physical
	// row exists per key: live or tombstone.
	tables map[string]map[string]schema.Row

	onMutation func(table string, n int)
}

// Open loads the store from cfg.Dir, creating the directory if needed.
func Open(cfg Config, reg *schema.Registry, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	s := &Store{
		cfg:    cfg,
		reg:    reg,
		log:    log,
		lock:   &fifoLock{},
		tables: make(map[string]map[string]schema.Row),
	}

	for _, tbl := range reg.All() {
		rows, err := s.loadTable(tbl)
		if err != nil {
			return nil, err
		}
		s.tables[tbl.Name] = rows
	}

	return s, nil
}

// SetMutationHook registers a callback invoked after each successful
// mutation with the number of applied changes. It runs outside the lock and
// feeds the micro-batcher's work queue.
func (s *Store) SetMutationHook(fn func(table string, n int)) {
	s.onMutation = fn
}

// ReadTable returns an instantaneous snapshot of a table, sorted by key.
// The snapshot is a deep copy: readers never observe a partially-written
// row, and holding the result does not block writers.
func (s *Store) ReadTable(ctx context.Context, name string) ([]schema.Row, error) {
	if _, err := s.reg.Lookup(name); err != nil {
		return nil, err
	}

	ctx, cancel := s.withLockBudget(ctx)
	defer cancel()
	if err := s.lock.Acquire(ctx); err != nil {
		return nil, err
	}

	index := s.tables[name]
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]schema.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, index[k].Clone())
	}
	s.lock.Release()

	return rows, nil
}

// UpsertRows writes rows into a table under the write lock. A row whose
// last_updated is strictly older than the stored version is a no-op; an
// equal timestamp replaces the row, which lets a startup merge prefer the
// remote copy on ties. Returns the number of applied rows.
func (s *Store) UpsertRows(ctx context.Context, name string, rows []schema.Row) (int, error) {
	tbl, err := s.reg.Lookup(name)
	if err != nil {
		return 0, err
	}

	// Validate and key the rows before touching the lock: the critical
	// section covers only the mutation and its flush.
	type pending struct {
		key string
		ts  time.Time
		row schema.Row
	}
	incoming := make([]pending, 0, len(rows))
	for _, row := range rows {
		key, err := tbl.Key(row)
		if err != nil {
			return 0, err
		}
		ts, err := row.LastUpdated()
		if err != nil {
			return 0, fmt.Errorf("row %q in table %q: %w", key, name, err)
		}
		incoming = append(incoming, pending{key: key, ts: ts, row: row.Clone()})
	}

	ctx, cancel := s.withLockBudget(ctx)
	defer cancel()
	if err := s.lock.Acquire(ctx); err != nil {
		return 0, err
	}

	index := s.tables[name]
	applied := 0
	for _, p := range incoming {
		if existing, ok := index[p.key]; ok {
			prev, err := existing.LastUpdated()
			if err == nil && p.ts.Before(prev) {
				continue
			}
		}
		index[p.key] = p.row
		applied++
	}

	// Post-write read-back: every incoming key must now hold a version at
	// least as new as the one we wrote or skipped. Anything else means a
	// writer bypassed the lock, which halts the engine.
	for _, p := range incoming {
		cur, ok := index[p.key]
		if ok {
			if ts, err := cur.LastUpdated(); err == nil && !ts.Before(p.ts) {
				continue
			}
		}
		s.lock.Release()
		return 0, fmt.Errorf("%w: lost write for key %q in table %q", syncerr.ErrInvariant, p.key, name)
	}

	if applied > 0 {
		if err := s.flushTable(tbl, index); err != nil {
			s.lock.Release()
			return 0, err
		}
	}
	s.lock.Release()

	if applied > 0 && s.onMutation != nil {
		s.onMutation(name, applied)
	}
	return applied, nil
}

// DeleteRows tombstones the given keys at the given logical timestamp. A
// key whose stored row is newer than the tombstone is a no-op; a missing
// key gets a fresh tombstone so the delete still propagates. Returns the
// number of applied tombstones.
func (s *Store) DeleteRows(ctx context.Context, name string, keys []string, at time.Time) (int, error) {
	tbl, err := s.reg.Lookup(name)
	if err != nil {
		return 0, err
	}

	tombstones := make(map[string]schema.Row, len(keys))
	for _, key := range keys {
		cols, err := tbl.KeyColumns(key)
		if err != nil {
			return 0, err
		}
		row := make(schema.Row, len(cols)+2)
		for col, v := range cols {
			row[col] = v
		}
		row[schema.ColDeleted] = "1"
		row.SetLastUpdated(at)
		tombstones[key] = row
	}

	ctx, cancel := s.withLockBudget(ctx)
	defer cancel()
	if err := s.lock.Acquire(ctx); err != nil {
		return 0, err
	}

	index := s.tables[name]
	applied := 0
	for key, row := range tombstones {
		if existing, ok := index[key]; ok {
			prev, err := existing.LastUpdated()
			if err == nil && at.Before(prev) {
				continue
			}
		}
		index[key] = row
		applied++
	}

	if applied > 0 {
		if err := s.flushTable(tbl, index); err != nil {
			s.lock.Release()
			return 0, err
		}
	}
	s.lock.Release()

	if applied > 0 && s.onMutation != nil {
		s.onMutation(name, applied)
	}
	return applied, nil
}

// withLockBudget applies the configured default lock budget when the caller
// did not bring a deadline of its own.
func (s *Store) withLockBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	budget := time.Duration(s.cfg.LockTimeoutSeconds) * time.Second
	if budget <= 0 {
		budget = 10 * time.Second
	}
	return context.WithTimeout(ctx, budget)
}

func (s *Store) tablePath(name string) string {
	return filepath.Join(s.cfg.Dir, name+".csv")
}

// header returns the persisted column order: primary key, mirrored columns,
// reserved columns, then any local-only fields present in the index.
func header(tbl *schema.Table, index map[string]schema.Row) []string {
	cols := make([]string, 0, len(tbl.PrimaryKey)+len(tbl.Columns)+2)
	seen := make(map[string]bool)
	for _, c := range tbl.PrimaryKey {
		cols = append(cols, c)
		seen[c] = true
	}
	for _, c := range tbl.Columns {
		if !seen[c.Name] {
			cols = append(cols, c.Name)
			seen[c.Name] = true
		}
	}
	cols = append(cols, schema.ColLastUpdated, schema.ColDeleted)
	seen[schema.ColLastUpdated] = true
	seen[schema.ColDeleted] = true

	var extras []string
	for _, row := range index {
		for name := range row {
			if !seen[name] {
				extras = append(extras, name)
				seen[name] = true
			}
		}
	}
	sort.Strings(extras)
	return append(cols, extras...)
}

// loadTable reads one table's CSV file. A missing file is an empty table.
func (s *Store) loadTable(tbl *schema.Table) (map[string]schema.Row, error) {
	index := make(map[string]schema.Row)

	f, err := os.Open(s.tablePath(tbl.Name))
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, fmt.Errorf("failed to open table %s: %w", tbl.Name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", tbl.Name, err)
	}
	if len(records) == 0 {
		return index, nil
	}

	cols := records[0]
	for _, rec := range records[1:] {
		row := make(schema.Row, len(cols))
		for i, col := range cols {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			}
		}
		key, err := tbl.Key(row)
		if err != nil {
			s.log.Warn("Skipping unkeyed row during load",
				zap.String("table", tbl.Name), zap.Error(err))
			continue
		}
		index[key] = row
	}
	return index, nil
}

// flushTable persists one table durably: write to a temp file in the same
// directory, fsync, then atomically rename over the live file. Called with
// the write lock held.
func (s *Store) flushTable(tbl *schema.Table, index map[string]schema.Row) error {
	cols := header(tbl, index)

	tmp, err := os.CreateTemp(s.cfg.Dir, tbl.Name+".csv.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", tbl.Name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(cols); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header for %s: %w", tbl.Name, err)
	}

	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	record := make([]string, len(cols))
	for _, k := range keys {
		row := index[k]
		for i, col := range cols {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row for %s: %w", tbl.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", tbl.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tbl.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file for %s: %w", tbl.Name, err)
	}

	if err := os.Rename(tmp.Name(), s.tablePath(tbl.Name)); err != nil {
		return fmt.Errorf("failed to replace table file for %s: %w", tbl.Name, err)
	}
	return nil
}
