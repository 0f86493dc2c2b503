package etl

import (
	"fmt"
	"strings"
)

// ── Record ─────────────────────────────────────────────────
// A vendor row on its way to the reporting collection. Sources emit flat
// records with dotted keys ("ESG.E"); after the nest transform the same
// values live in nested maps. Get reads both shapes.

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "datetime" | "array"
}

// Schema describes the shape of records coming from a source.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}

// Get returns the value at path. A flat dotted key wins over a nested
// lookup, so "ESG.E" resolves before and after nesting.
func (r Record) Get(path string) (any, bool) {
	if v, ok := r.Data[path]; ok {
		return v, true
	}
	cur := r.Data
	for {
		head, rest, more := strings.Cut(path, ".")
		v, ok := cur[head]
		if !ok {
			return nil, false
		}
		if !more {
			return v, true
		}
		if cur, ok = v.(map[string]any); !ok {
			return nil, false
		}
		path = rest
	}
}

// Key joins the values of fields into a comparable identity, e.g. the
// (isin, date) pair that identifies one delivery.
func (r Record) Key(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if v, ok := r.Get(f); ok {
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, "\x00")
}
