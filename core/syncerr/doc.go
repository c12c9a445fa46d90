// Package syncerr defines the error taxonomy shared by the store, the
// remote client and the sync orchestrator.
//
// The taxonomy separates operation-local failures (lock timeouts), soft
// per-table failures (remote unavailable, schema drift), data failures
// (malformed rows) and fatal invariant violations. Soft failures are
// isolated per table and retried on the next sync invocation; fatal
// violations halt the engine and surface to the operator.
package syncerr
