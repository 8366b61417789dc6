package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultIDField is the identifier field used by most backend collections.
const DefaultIDField = "_id"

// Record is one row of a remote collection.
type Record map[string]any

// Lookup returns the value at a dotted field path.
// Returns false if any segment is missing or traverses a non-object.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, seg := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ID returns the record identifier stored under idField as a string.
func (r Record) ID(idField string) string {
	v, ok := r.Lookup(idField)
	if !ok {
		return ""
	}
	s, _ := Text(v)
	return s
}

// Text returns the stringified value at path.
func (r Record) Text(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	return Text(v)
}

// Clone returns a shallow copy. Nested objects are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with the top-level fields of delta replaced.
// The receiver is not modified.
func (r Record) Merge(delta map[string]any) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(delta))
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Record:
		return o, true
	default:
		return nil, false
	}
}

// Decode reads a JSON array of objects.
func Decode(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]Record, len(raw))
	for i, m := range raw {
		out[i] = Record(m)
	}
	return out, nil
}

// DecodeOne reads a single JSON object.
// An empty body decodes to a nil Record without error.
func DecodeOne(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Record(m), nil
}

// CheckIDs verifies that every record carries a non-empty identifier and
// that no identifier repeats within the snapshot.
func CheckIDs(records []Record, idField string) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		id := r.ID(idField)
		if id == "" {
			return fmt.Errorf("record %d: missing %q", i, idField)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("record %d: duplicate %s %q (first seen at %d)", i, idField, id, prev)
		}
		seen[id] = i
	}
	return nil
}
