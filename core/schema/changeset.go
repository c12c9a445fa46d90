package schema

import "time"

// ChangeSet is the set of upserts and deletes computed for one table in one
// sync invocation. The store keeps exactly one physical row per key (live
// or tombstone), so a key can never appear both as an upsert and a delete.
type ChangeSet struct {
	// Table is the table the changes belong to.
	Table string
	// Upserts are live rows newer than their watermark.
	Upserts []Row
	// Deletes are the keys of tombstones newer than their watermark.
	Deletes []string
	// Marks records, per key, the last_updated value being pushed. After a
	// confirmed push the watermark advances to exactly these values, never
	// to "now", so a row rewritten mid-flight is re-detected next cycle.
	Marks map[string]time.Time
}

// Empty reports whether the ChangeSet carries no work.
func (c *ChangeSet) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// Size returns the number of changed keys.
func (c *ChangeSet) Size() int {
	return len(c.Upserts) + len(c.Deletes)
}
