// Package store implements the flat-file local store and its write lock.
//
// The store is the always-available write buffer for the pipeline: many
// concurrent producers upsert and tombstone rows here regardless of network
// state. Each table is one CSV file; an in-memory index serves reads and
// the whole table is rewritten atomically (temp file + rename) on every
// mutation, inside the single fair write lock the Store owns.
//
// The critical section is bounded: in-memory mutation plus durable flush.
// Network I/O never happens under the lock; the sync orchestrator snapshots
// a table, releases the lock, and pushes against the snapshot.
package store
