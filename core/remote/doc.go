// Package remote is the thin transport against the cloud store.
//
// It exposes push (per-table ChangeSet application), full-table pull and
// idempotent schema provisioning over a GORM MySQL connection. Upsert
// conflicts on the primary key are resolved by full-row overwrite of the
// mirrored columns. Driver errors are classified into the sync taxonomy:
// missing tables and unknown columns surface as schema mismatches,
// everything else as a soft per-table unavailability.
package remote
