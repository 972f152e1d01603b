package session

import (
	"sort"
	"strings"
)

// Data holds the current value of every populated schema field.
type Data map[Field]string

// Change is one audited field write.
type Change struct {
	Field Field  `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Get returns the trimmed value of f, or "".
func (d Data) Get(f Field) string {
	return strings.TrimSpace(d[f])
}

// Has reports whether f holds a non-empty value.
func (d Data) Has(f Field) bool {
	return d.Get(f) != ""
}

// Merge writes every non-empty update that differs from the current value
// and returns the applied changes ordered by field name. Unknown fields are
// ignored. Empty updates never clear a value.
func (d Data) Merge(updates map[Field]string) []Change {
	var changes []Change
	for f, v := range updates {
		v = strings.TrimSpace(v)
		if v == "" || !f.Known() {
			continue
		}
		old := d.Get(f)
		if old == v {
			continue
		}
		d[f] = v
		changes = append(changes, Change{Field: f, Old: old, New: v})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

// Snapshot returns a plain copy keyed by field name.
func (d Data) Snapshot() map[string]string {
	out := make(map[string]string, len(d))
	for f, v := range d {
		if v = strings.TrimSpace(v); v != "" {
			out[string(f)] = v
		}
	}
	return out
}

// Clone returns an independent copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for f, v := range d {
		out[f] = v
	}
	return out
}
