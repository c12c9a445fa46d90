package schema

import (
	"fmt"

	"leobook/core/syncerr"
)

// ColumnType enumerates the scalar types a mirrored column may carry.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeReal      ColumnType = "real"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
)

// Reserved column names present on every table.
const (
	// ColLastUpdated is the application-assigned logical timestamp.
	ColLastUpdated = "last_updated"
	// ColDeleted is the tombstone flag.
	ColDeleted = "deleted"
)

// KeySep joins the parts of a composite primary key into a single
// ChangeSet/watermark key.
const KeySep = "|"

// Column describes one mirrored column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes one of the synced tables: its name, primary key and
// mirrored column set. Columns not declared here may still exist in local
// rows (local-only fields); they are never pushed to the remote.
type Table struct {
	// Name is the table name, identical in both stores.
	Name string
	// PrimaryKey lists the key columns in declared order.
	PrimaryKey []string
	// Columns is the mirrored column set, excluding the reserved
	// last_updated and deleted columns.
	Columns []Column
	// Micro marks latency-sensitive tables served by micro-sync.
	Micro bool
}

// ColumnNames returns the mirrored column names plus the reserved
// last_updated column, in stable order. The deleted flag is local
// bookkeeping and is not mirrored.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return append(names, ColLastUpdated)
}

// Registry holds the schemas of all synced tables.
type Registry struct {
	tables map[string]*Table
	order  []string
}

// NewRegistry builds the registry for the twelve synced tables.
func NewRegistry() *Registry {
	r := &Registry{tables: make(map[string]*Table)}
	for _, t := range defaultTables() {
		r.add(t)
	}
	return r
}

func (r *Registry) add(t *Table) {
	r.tables[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Lookup returns the schema for a table name.
func (r *Registry) Lookup(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", syncerr.ErrUnknownTable, name)
	}
	return t, nil
}

// All returns every table in declaration order.
func (r *Registry) All() []*Table {
	out := make([]*Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// MicroTables returns the latency-sensitive tables in declaration order.
func (r *Registry) MicroTables() []*Table {
	var out []*Table
	for _, t := range r.All() {
		if t.Micro {
			out = append(out, t)
		}
	}
	return out
}

// defaultTables declares the schemas for the synced tables. Column sets
// mirror the headers of the flat-file store.
func defaultTables() []*Table {
	return []*Table{
		{
			Name:       "schedules",
			PrimaryKey: []string{"fixture_id"},
			Columns: []Column{
				{"region_league", TypeText},
				{"home_team", TypeText},
				{"away_team", TypeText},
				{"match_time", TypeTimestamp},
				{"status", TypeText},
				{"home_score", TypeInteger},
				{"away_score", TypeInteger},
				{"live_minute", TypeText},
			},
		},
		{
			Name:       "teams",
			PrimaryKey: []string{"team_id"},
			Columns: []Column{
				{"team_name", TypeText},
				{"region", TypeText},
				{"team_crest", TypeText},
			},
		},
		{
			Name:       "region_league",
			PrimaryKey: []string{"league_id"},
			Columns: []Column{
				{"region", TypeText},
				{"league_name", TypeText},
				{"league_crest", TypeText},
			},
		},
		{
			Name:       "standings",
			PrimaryKey: []string{"league_id", "team_id"},
			Columns: []Column{
				{"rank", TypeInteger},
				{"played", TypeInteger},
				{"won", TypeInteger},
				{"drawn", TypeInteger},
				{"lost", TypeInteger},
				{"points", TypeInteger},
			},
		},
		{
			Name:       "predictions",
			PrimaryKey: []string{"fixture_id"},
			Micro:      true,
			Columns: []Column{
				{"market", TypeText},
				{"prediction", TypeText},
				{"confidence", TypeReal},
				{"status", TypeText},
			},
		},
		{
			Name:       "live_scores",
			PrimaryKey: []string{"fixture_id"},
			Micro:      true,
			Columns: []Column{
				{"home_score", TypeInteger},
				{"away_score", TypeInteger},
				{"minute", TypeText},
				{"status", TypeText},
			},
		},
		{
			Name:       "fb_matches",
			PrimaryKey: []string{"fb_match_id"},
			Columns: []Column{
				{"fixture_id", TypeText},
				{"home_team", TypeText},
				{"away_team", TypeText},
				{"market_odds", TypeReal},
			},
		},
		{
			Name:       "audit_log",
			PrimaryKey: []string{"entry_id"},
			Columns: []Column{
				{"event", TypeText},
				{"detail", TypeText},
				{"created_at", TypeTimestamp},
			},
		},
		{
			Name:       "accuracy_reports",
			PrimaryKey: []string{"report_id"},
			Columns: []Column{
				{"window", TypeText},
				{"total", TypeInteger},
				{"correct", TypeInteger},
				{"accuracy", TypeReal},
			},
		},
		{
			Name:       "bookings",
			PrimaryKey: []string{"booking_id"},
			Columns: []Column{
				{"fixture_id", TypeText},
				{"market", TypeText},
				{"stake", TypeReal},
				{"odds", TypeReal},
				{"status", TypeText},
			},
		},
		{
			Name:       "withdrawals",
			PrimaryKey: []string{"withdrawal_id"},
			Columns: []Column{
				{"amount", TypeReal},
				{"status", TypeText},
				{"requested_at", TypeTimestamp},
			},
		},
		{
			Name:       "balances",
			PrimaryKey: []string{"snapshot_id"},
			Columns: []Column{
				{"balance", TypeReal},
				{"bonus", TypeReal},
				{"captured_at", TypeTimestamp},
			},
		},
	}
}
