package sync

import "time"

// State names the orchestrator's current phase.
type State string

const (
	StateIdle         State = "idle"
	StateStartupMerge State = "startup_merge"
	StateCycleSync    State = "cycle_sync"
	StateMicroSync    State = "micro_sync"
)

// Outcome is the per-table result of one sync invocation.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// TableResult reports one table's share of a sync invocation.
type TableResult struct {
	Table   string  `json:"table"`
	Outcome Outcome `json:"outcome"`
	// Upserts and Deletes count confirmed pushed changes.
	Upserts int `json:"upserts"`
	Deletes int `json:"deletes"`
	// Dropped counts malformed rows removed from the ChangeSet.
	Dropped int    `json:"dropped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CycleReport summarizes one sync invocation across its table set.
// Failures are isolated per table: one failed table never aborts the rest.
type CycleReport struct {
	ID        string        `json:"id"`
	Kind      State         `json:"kind"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []TableResult `json:"results"`
}

// Failed lists the tables that did not complete.
func (r *CycleReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Outcome != OutcomeOK {
			out = append(out, res.Table)
		}
	}
	return out
}

// OK reports whether every table completed.
func (r *CycleReport) OK() bool {
	return len(r.Failed()) == 0
}

// Status is the read-only engine view served to operators.
type Status struct {
	State     State        `json:"state"`
	MergedAt  *time.Time   `json:"merged_at,omitempty"`
	Suspended []string     `json:"suspended,omitempty"`
	LastCycle *CycleReport `json:"last_cycle,omitempty"`
}
