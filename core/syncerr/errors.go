package syncerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sync engine. Callers classify failures with
// errors.Is and decide whether to retry, suspend or halt.
var (
	// ErrLockTimeout means a store operation could not acquire the write
	// lock within the caller's budget. The single operation fails; the
	// process continues.
	ErrLockTimeout = errors.New("write lock acquisition timed out")

	// ErrRemoteUnavailable is a per-table soft failure. The watermark is
	// left untouched and the table is retried on the next sync invocation.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrSchemaMismatch means the remote table is missing or has drifted.
	// It triggers EnsureSchema; repeated failure suspends the table until
	// the next startup merge.
	ErrSchemaMismatch = errors.New("remote schema mismatch")

	// ErrTableSuspended marks a table excluded from sync after repeated
	// schema failures. Cleared by the next startup merge.
	ErrTableSuspended = errors.New("table suspended")

	// ErrInvariant marks a fatal invariant violation (lock bypass, lost
	// durable write). It halts the engine rather than being absorbed.
	ErrInvariant = errors.New("sync invariant violated")

	// ErrUnknownTable means a table name is not in the schema registry.
	ErrUnknownTable = errors.New("unknown table")
)

// MalformedRowError describes a row that failed codec coercion. The row is
// dropped from its ChangeSet with a logged warning and never retried, so a
// single poison row cannot block its table.
type MalformedRowError struct {
	Table  string
	Key    string
	Column string
	Reason string
}

func (e *MalformedRowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("malformed row %q in table %q: column %q: %s", e.Key, e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed row %q in table %q: %s", e.Key, e.Table, e.Reason)
}

// IsMalformed reports whether err is a MalformedRowError.
func IsMalformed(err error) bool {
	var m *MalformedRowError
	return errors.As(err, &m)
}
