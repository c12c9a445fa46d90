// Package sync is the reconciliation engine between the flat-file local
// store and the relational cloud store.
//
// The engine keeps twelve independent tables consistent under continuous
// concurrent local writes and an intermittently-reachable network. It
// consists of:
//
//  1. Watermarks: a persisted per-table map of key -> last_updated of the
//     newest row version known to be durably reconciled with the remote.
//     Watermarks only advance after a confirmed successful push.
//
//  2. Detector: computes a table's ChangeSet (rows newer than their
//     watermark, plus new tombstones) from a snapshot taken under the
//     store lock. O(local row count), independent of network latency.
//
//  3. MicroBatcher: a bounded work queue of local-write notifications for
//     latency-sensitive tables, flushing on a size or time trigger.
//
//  4. Orchestrator: the IDLE -> STARTUP_MERGE -> {CYCLE_SYNC}* state
//     machine, with MICRO_SYNC on an independent cadence. Per-table
//     failures are isolated and summarized in the cycle report; schema
//     drift triggers re-provisioning and, on repeated failure, suspension
//     until the next startup merge.
//
// The conflict policy is last-writer-wins by the application-assigned
// last_updated timestamp; on exact ties the remote copy wins, since the
// remote is the read system of record. Deliveries are at-least-once: an
// interrupted push never advances a watermark and is retried as-is.
package sync
