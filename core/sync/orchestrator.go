package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leobook/core/remote"
	"leobook/core/schema"
	"leobook/core/store"
	"leobook/core/syncerr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator drives the reconciliation state machine:
//
//	IDLE -> STARTUP_MERGE -> {CYCLE_SYNC}* -> IDLE
//
// with MICRO_SYNC running on an independent cadence for latency-sensitive
// tables. Tables are synced and watermarked independently; one table's
// failure never aborts the others.
type Orchestrator struct {
	cfg    Config
	store  *store.Store
	remote remote.Client
	reg    *schema.Registry
	marks  *Watermarks
	det    *Detector
	log    *zap.Logger

	mu        sync.Mutex
	state     State
	merged    bool
	mergedAt  time.Time
	suspended map[string]bool
	lastCycle *CycleReport
}

// New creates the orchestrator. The watermark map is shared with the
// detector; the remote client is never called while the store lock is held.
func New(cfg Config, st *store.Store, rc remote.Client, reg *schema.Registry, marks *Watermarks, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     st,
		remote:    rc,
		reg:       reg,
		marks:     marks,
		det:       NewDetector(reg, marks, log),
		log:       log,
		state:     StateIdle,
		suspended: make(map[string]bool),
	}
}

// Status returns the read-only engine view.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Status{State: o.state, LastCycle: o.lastCycle}
	if o.merged {
		t := o.mergedAt
		s.MergedAt = &t
	}
	for table := range o.suspended {
		s.Suspended = append(s.Suspended, table)
	}
	return s
}

// StartupMerge pulls every remote table in full, keeps the per-key winner
// by last_updated in both stores, pushes local-only-newer winners, and
// seeds the watermark map to the post-merge state. It runs once per process
// start unless force re-runs it; it also lifts all table suspensions.
func (o *Orchestrator) StartupMerge(ctx context.Context, force bool) (*CycleReport, error) {
	o.mu.Lock()
	if o.merged && !force {
		o.mu.Unlock()
		return nil, nil
	}
	o.state = StateStartupMerge
	o.suspended = make(map[string]bool)
	o.mu.Unlock()

	report := o.newReport(StateStartupMerge)
	for _, tbl := range o.reg.All() {
		report.Results = append(report.Results, o.mergeTable(ctx, tbl))
	}
	report.Duration = time.Since(report.StartedAt)

	if err := o.marks.Flush(); err != nil {
		o.log.Error("Failed to persist watermarks after merge", zap.Error(err))
	}

	o.mu.Lock()
	o.merged = true
	o.mergedAt = time.Now().UTC()
	o.state = StateIdle
	o.lastCycle = report
	o.mu.Unlock()

	o.logReport("Startup merge complete", report)
	return report, nil
}

// mergeTable merges one table in both directions and seeds its watermarks.
func (o *Orchestrator) mergeTable(ctx context.Context, tbl *schema.Table) TableResult {
	result := TableResult{Table: tbl.Name, Outcome: OutcomeOK}

	if err := o.remote.EnsureSchema(ctx, tbl.Name); err != nil {
		return o.failed(tbl.Name, result, fmt.Errorf("ensure schema: %w", err))
	}

	remoteRows, err := o.remote.Pull(ctx, tbl.Name)
	if err != nil {
		return o.failed(tbl.Name, result, fmt.Errorf("pull: %w", err))
	}

	snapshot, err := o.store.ReadTable(ctx, tbl.Name)
	if err != nil {
		return o.failed(tbl.Name, result, fmt.Errorf("snapshot: %w", err))
	}

	localIndex := make(map[string]schema.Row, len(snapshot))
	localTS := make(map[string]time.Time, len(snapshot))
	for _, row := range snapshot {
		key, err := tbl.Key(row)
		if err != nil {
			result.Dropped++
			continue
		}
		ts, err := row.LastUpdated()
		if err != nil {
			result.Dropped++
			continue
		}
		localIndex[key] = row
		localTS[key] = ts
	}

	// Remote winners flow into the local store; ties prefer the remote
	// copy, which the store applies because equal timestamps replace.
	var localWrites []schema.Row
	remoteTS := make(map[string]time.Time, len(remoteRows))
	for _, row := range remoteRows {
		key, err := tbl.Key(row)
		if err != nil {
			result.Dropped++
			continue
		}
		ts, _ := row.LastUpdated()
		remoteTS[key] = ts
		if lts, ok := localTS[key]; !ok || !lts.After(ts) {
			localWrites = append(localWrites, row)
		}
	}
	if len(localWrites) > 0 {
		if _, err := o.store.UpsertRows(ctx, tbl.Name, localWrites); err != nil {
			return o.failed(tbl.Name, result, fmt.Errorf("apply remote winners: %w", err))
		}
	}

	// Local-only-newer winners queue for push; everything the remote
	// already holds is seeded directly.
	push := &schema.ChangeSet{Table: tbl.Name, Marks: make(map[string]time.Time)}
	for key, row := range localIndex {
		lts := localTS[key]
		rts, onRemote := remoteTS[key]

		if row.IsTombstone() {
			if onRemote && lts.After(rts) {
				push.Deletes = append(push.Deletes, key)
				push.Marks[key] = lts
			} else if !onRemote {
				// Nothing to delete remotely; the tombstone is already
				// reconciled.
				o.marks.Advance(tbl.Name, key, lts)
			}
			continue
		}

		if !onRemote || lts.After(rts) {
			push.Upserts = append(push.Upserts, row)
			push.Marks[key] = lts
		}
	}
	for key, rts := range remoteTS {
		if lts, ok := localTS[key]; !ok || !lts.After(rts) {
			// The remote copy won (or tied); both stores now hold it.
			o.marks.Advance(tbl.Name, key, rts)
		}
	}

	sortChangeSet(tbl, push)
	if !push.Empty() {
		if err := o.remote.Push(ctx, push); err != nil {
			// Watermarks for the pushed keys stay unset; the next cycle
			// re-detects and retries them.
			return o.failed(tbl.Name, result, fmt.Errorf("push winners: %w", err))
		}
		o.marks.AdvanceAll(tbl.Name, push.Marks)
		result.Upserts = len(push.Upserts)
		result.Deletes = len(push.Deletes)
	}

	return result
}

// CycleSync computes and pushes a ChangeSet for every non-suspended table.
// On success a table's watermark advances to the pushed values; on failure
// it is left untouched for a clean retry next invocation.
func (o *Orchestrator) CycleSync(ctx context.Context) *CycleReport {
	o.setState(StateCycleSync)
	defer o.setState(StateIdle)

	report := o.newReport(StateCycleSync)
	for _, tbl := range o.reg.All() {
		if o.isSuspended(tbl.Name) {
			report.Results = append(report.Results, TableResult{
				Table:   tbl.Name,
				Outcome: OutcomeFailed,
				Error:   syncerr.ErrTableSuspended.Error(),
			})
			continue
		}
		report.Results = append(report.Results, o.syncTable(ctx, tbl, 0))
	}
	report.Duration = time.Since(report.StartedAt)

	if err := o.marks.Flush(); err != nil {
		o.log.Error("Failed to persist watermarks after cycle", zap.Error(err))
	}

	o.mu.Lock()
	o.lastCycle = report
	o.mu.Unlock()

	o.logReport("Cycle sync complete", report)
	return report
}

// MicroSync pushes a small bounded ChangeSet for the given tables
// immediately, bypassing the full-cycle cadence.
func (o *Orchestrator) MicroSync(ctx context.Context, tables []string) *CycleReport {
	o.setState(StateMicroSync)
	defer o.setState(StateIdle)

	report := o.newReport(StateMicroSync)
	for _, name := range tables {
		tbl, err := o.reg.Lookup(name)
		if err != nil {
			o.log.Warn("Micro-sync for unknown table", zap.String("table", name))
			continue
		}
		if o.isSuspended(name) {
			continue
		}
		report.Results = append(report.Results, o.syncTable(ctx, tbl, o.cfg.MicroBatchSize))
	}
	report.Duration = time.Since(report.StartedAt)

	if err := o.marks.Flush(); err != nil {
		o.log.Error("Failed to persist watermarks after micro-sync", zap.Error(err))
	}

	o.logReport("Micro-sync complete", report)
	return report
}

// FlushMicro adapts MicroSync to the micro-batcher's flush callback.
func (o *Orchestrator) FlushMicro(ctx context.Context, tables []string) {
	o.MicroSync(ctx, tables)
}

// syncTable snapshots one table under the store lock, releases the lock,
// then pushes the detected changes against the snapshot. Any row written
// strictly before the snapshot is guaranteed to be in the ChangeSet.
func (o *Orchestrator) syncTable(ctx context.Context, tbl *schema.Table, limit int) TableResult {
	result := TableResult{Table: tbl.Name, Outcome: OutcomeOK}

	snapshot, err := o.store.ReadTable(ctx, tbl.Name)
	if err != nil {
		return o.failed(tbl.Name, result, fmt.Errorf("snapshot: %w", err))
	}

	cs, dropped, err := o.det.Detect(tbl.Name, snapshot)
	if err != nil {
		return o.failed(tbl.Name, result, err)
	}
	result.Dropped = dropped

	cs = bound(tbl, cs, limit)
	if cs.Empty() {
		return result
	}

	if err := o.push(ctx, tbl, cs); err != nil {
		return o.failed(tbl.Name, result, err)
	}

	o.marks.AdvanceAll(tbl.Name, cs.Marks)
	result.Upserts = len(cs.Upserts)
	result.Deletes = len(cs.Deletes)
	return result
}

// push sends one ChangeSet, repairing the remote schema once on mismatch.
// A second schema failure suspends the table until the next startup merge.
func (o *Orchestrator) push(ctx context.Context, tbl *schema.Table, cs *schema.ChangeSet) error {
	err := o.remote.Push(ctx, cs)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syncerr.ErrSchemaMismatch) {
		return err
	}

	o.log.Warn("Schema mismatch, provisioning remote table",
		zap.String("table", tbl.Name), zap.Error(err))

	if ensureErr := o.remote.EnsureSchema(ctx, tbl.Name); ensureErr != nil {
		o.suspend(tbl.Name)
		return fmt.Errorf("ensure schema after mismatch: %w", ensureErr)
	}
	if retryErr := o.remote.Push(ctx, cs); retryErr != nil {
		if errors.Is(retryErr, syncerr.ErrSchemaMismatch) {
			o.suspend(tbl.Name)
		}
		return retryErr
	}
	return nil
}

// RunCycleLoop runs CYCLE_SYNC on the configured cadence until ctx is
// cancelled. An in-flight cycle is allowed to complete on shutdown;
// watermarks only advance on confirmed pushes, so an interrupted push is
// always safely retried.
func (o *Orchestrator) RunCycleLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.CycleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CycleSync(context.WithoutCancel(ctx))
		}
	}
}

func (o *Orchestrator) newReport(kind State) *CycleReport {
	return &CycleReport{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) failed(table string, result TableResult, err error) TableResult {
	o.log.Warn("Table sync failed", zap.String("table", table), zap.Error(err))
	result.Outcome = OutcomeFailed
	result.Error = err.Error()
	return result
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) isSuspended(table string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suspended[table]
}

func (o *Orchestrator) suspend(table string) {
	o.mu.Lock()
	o.suspended[table] = true
	o.mu.Unlock()
	o.log.Error("Table suspended until next startup merge", zap.String("table", table))
}

func (o *Orchestrator) logReport(msg string, report *CycleReport) {
	fields := []zap.Field{
		zap.String("sync_id", report.ID),
		zap.Duration("duration", report.Duration),
		zap.Int("tables", len(report.Results)),
	}
	if failed := report.Failed(); len(failed) > 0 {
		fields = append(fields, zap.Strings("failed", failed))
		o.log.Warn(msg, fields...)
		return
	}
	o.log.Info(msg, fields...)
}
