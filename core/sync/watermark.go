package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Watermarks is the persisted per-table map of key -> last_updated of the
// newest row version known to be durably reconciled with the remote. It
// replaces full-table diffing with an O(local row count) scan.
//
// Values only ever advance, and only after a confirmed successful push --
// never optimistically. A row rewritten while its push is in flight keeps a
// watermark below its new timestamp and is re-detected next cycle.
type Watermarks struct {
	mu    sync.Mutex
	path  string
	marks map[string]map[string]time.Time
}

// LoadWatermarks reads the watermark file, treating a missing file as an
// empty map (cold start).
func LoadWatermarks(path string) (*Watermarks, error) {
	w := &Watermarks{path: path, marks: make(map[string]map[string]time.Time)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, fmt.Errorf("failed to read watermarks: %w", err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse watermarks: %w", err)
	}
	for table, keys := range raw {
		w.marks[table] = make(map[string]time.Time, len(keys))
		for key, val := range keys {
			ts, err := time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return nil, fmt.Errorf("failed to parse watermark %s/%s: %w", table, key, err)
			}
			w.marks[table][key] = ts
		}
	}
	return w, nil
}

// Get returns the watermark for a key, if any.
func (w *Watermarks) Get(table, key string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts, ok := w.marks[table][key]
	return ts, ok
}

// Advance raises the watermark for a key to ts. A value at or below the
// current watermark is ignored, keeping the map monotonic.
func (w *Watermarks) Advance(table, key string, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys, ok := w.marks[table]
	if !ok {
		keys = make(map[string]time.Time)
		w.marks[table] = keys
	}
	if cur, ok := keys[key]; ok && !ts.After(cur) {
		return
	}
	keys[key] = ts
}

// AdvanceAll applies Advance for every entry of a confirmed push.
func (w *Watermarks) AdvanceAll(table string, marks map[string]time.Time) {
	for key, ts := range marks {
		w.Advance(table, key, ts)
	}
}

// Snapshot returns a copy of one table's watermark map.
func (w *Watermarks) Snapshot(table string) map[string]time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]time.Time, len(w.marks[table]))
	for key, ts := range w.marks[table] {
		out[key] = ts
	}
	return out
}

// Count returns the number of watermarked keys for a table.
func (w *Watermarks) Count(table string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.marks[table])
}

// Flush persists the map durably: temp file in the same directory, fsync,
// atomic rename.
func (w *Watermarks) Flush() error {
	w.mu.Lock()
	raw := make(map[string]map[string]string, len(w.marks))
	for table, keys := range w.marks {
		raw[table] = make(map[string]string, len(keys))
		for key, ts := range keys {
			raw[table][key] = ts.UTC().Format(time.RFC3339Nano)
		}
	}
	w.mu.Unlock()

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal watermarks: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watermark dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "watermarks.json.tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create watermark temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write watermarks: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync watermarks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close watermark temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to replace watermark file: %w", err)
	}
	return nil
}
