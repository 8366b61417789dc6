package record

// IndexOf returns the position of the record with the given id, or -1.
func IndexOf(records []Record, idField, id string) int {
	for i, r := range records {
		if r.ID(idField) == id {
			return i
		}
	}
	return -1
}

// Replace returns a new slice where the record with the given id has its
// fields replaced by delta. The id field itself is never overwritten.
// Returns the input unchanged and false when the id is absent.
func Replace(records []Record, idField, id string, delta map[string]any) ([]Record, bool) {
	idx := IndexOf(records, idField, id)
	if idx < 0 {
		return records, false
	}
	patch := make(map[string]any, len(delta))
	for k, v := range delta {
		if k == idField {
			continue
		}
		patch[k] = v
	}
	out := make([]Record, len(records))
	copy(out, records)
	out[idx] = records[idx].Merge(patch)
	return out, true
}

// Remove returns a new slice without the record with the given id.
func Remove(records []Record, idField, id string) ([]Record, bool) {
	idx := IndexOf(records, idField, id)
	if idx < 0 {
		return records, false
	}
	out := make([]Record, 0, len(records)-1)
	out = append(out, records[:idx]...)
	out = append(out, records[idx+1:]...)
	return out, true
}
