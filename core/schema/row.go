package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"leobook/core/syncerr"
)

// Row is a single table row as held by the flat-file store: column name to
// string cell. Reserved columns last_updated and deleted ride alongside the
// mirrored columns.
type Row map[string]string

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsTombstone reports whether the row is an explicit delete marker.
func (r Row) IsTombstone() bool {
	switch strings.ToLower(r[ColDeleted]) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// LastUpdated parses the row's logical timestamp.
func (r Row) LastUpdated() (time.Time, error) {
	raw := r[ColLastUpdated]
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", ColLastUpdated)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s %q: %w", ColLastUpdated, raw, err)
	}
	return ts, nil
}

// SetLastUpdated stores the logical timestamp in canonical form.
func (r Row) SetLastUpdated(ts time.Time) {
	r[ColLastUpdated] = ts.UTC().Format(time.RFC3339Nano)
}

// Key extracts the row's primary key, joining composite parts with KeySep.
func (t *Table) Key(r Row) (string, error) {
	parts := make([]string, 0, len(t.PrimaryKey))
	for _, col := range t.PrimaryKey {
		v := r[col]
		if v == "" {
			return "", &syncerr.MalformedRowError{Table: t.Name, Column: col, Reason: "empty primary key column"}
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, KeySep), nil
}

// KeyColumns splits a ChangeSet/watermark key back into column name to
// value pairs, in primary-key order.
func (t *Table) KeyColumns(key string) (map[string]string, error) {
	parts := strings.Split(key, KeySep)
	if len(parts) != len(t.PrimaryKey) {
		return nil, fmt.Errorf("key %q does not match %d-column primary key of %s", key, len(t.PrimaryKey), t.Name)
	}
	out := make(map[string]string, len(parts))
	for i, col := range t.PrimaryKey {
		out[col] = parts[i]
	}
	return out, nil
}

// Coerce converts a row's mirrored cells into typed values for a remote
// write. Primary-key columns pass through as text. Empty cells map to NULL.
// Unknown cells (local-only fields) are ignored. A cell that fails
// conversion makes the whole row malformed.
func (t *Table) Coerce(r Row) (map[string]any, error) {
	key, err := t.Key(r)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(t.Columns)+len(t.PrimaryKey)+1)
	for _, col := range t.PrimaryKey {
		out[col] = r[col]
	}

	for _, c := range t.Columns {
		if containsString(t.PrimaryKey, c.Name) {
			continue
		}
		raw, ok := r[c.Name]
		if !ok || raw == "" {
			out[c.Name] = nil
			continue
		}
		v, err := coerceCell(raw, c.Type)
		if err != nil {
			return nil, &syncerr.MalformedRowError{Table: t.Name, Key: key, Column: c.Name, Reason: err.Error()}
		}
		out[c.Name] = v
	}

	ts, err := r.LastUpdated()
	if err != nil {
		return nil, &syncerr.MalformedRowError{Table: t.Name, Key: key, Column: ColLastUpdated, Reason: err.Error()}
	}
	out[ColLastUpdated] = ts.UTC()

	return out, nil
}

// FromValues converts a remote result row (typed values) back into a store
// Row. It is the inverse of Coerce for the mirrored column set.
func (t *Table) FromValues(values map[string]any) (Row, error) {
	row := make(Row, len(values))
	for name, v := range values {
		if v == nil {
			continue
		}
		row[name] = formatCell(v)
	}
	if _, err := t.Key(row); err != nil {
		return nil, err
	}
	if _, err := row.LastUpdated(); err != nil {
		key, _ := t.Key(row)
		return nil, &syncerr.MalformedRowError{Table: t.Name, Key: key, Column: ColLastUpdated, Reason: err.Error()}
	}
	return row, nil
}

func coerceCell(raw string, typ ColumnType) (any, error) {
	switch typ {
	case TypeText:
		return raw, nil
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		return n, nil
	case TypeReal:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return f, nil
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes":
			return true, nil
		case "0", "false", "no":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean: %q", raw)
	case TypeTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("not a timestamp: %q", raw)
		}
		return ts.UTC(), nil
	}
	return nil, fmt.Errorf("unknown column type %q", typ)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
