// Package schema is the row codec and schema registry for the synced
// tables.
//
// Each table declares its name, primary key and mirrored column set. Rows
// travel through the engine as string-cell maps, exactly as the flat-file
// store holds them; the codec coerces cells into typed values at the remote
// boundary and back.
//
// # Reserved columns
//
// Every row carries last_updated (RFC 3339, the application-assigned
// logical timestamp driving last-writer-wins) and deleted (the tombstone
// flag). Tombstones are explicit rows: a flat-file store cannot otherwise
// distinguish "removed" from "never existed".
//
// # Malformed rows
//
// A row that fails key extraction or cell coercion yields a
// syncerr.MalformedRowError. The change detector drops such rows from the
// ChangeSet with a warning instead of letting one poison row block its
// table.
package schema
