package etl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"esgdata/internal/interval"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify records in-flight between source and destination.
// Each takes a record and returns a (possibly modified) record, whether to
// keep it, and an error that aborts the run.

// Transformer processes a single record.
// Returns (transformed record, keep, err). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool, error)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool, error)

func (f TransformerFunc) Transform(r Record) (Record, bool, error) { return f(r) }

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform drops records where the given field does not match the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "gt" | "lt" | "contains"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool, error) {
	v, ok := r.Get(t.Field)
	if !ok {
		return r, false, nil
	}
	switch t.Op {
	case "eq":
		return r, fmt.Sprint(v) == fmt.Sprint(t.Value), nil
	case "neq":
		return r, fmt.Sprint(v) != fmt.Sprint(t.Value), nil
	case "contains":
		return r, strings.Contains(fmt.Sprint(v), fmt.Sprint(t.Value)), nil
	case "gt":
		return r, toFloat(v) > toFloat(t.Value), nil
	case "lt":
		return r, toFloat(v) < toFloat(t.Value), nil
	default:
		return r, true, nil
	}
}

// RenameTransform maps vendor column names onto document keys.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool, error) {
	for old, renamed := range t.Mapping {
		if v, ok := r.Data[old]; ok {
			delete(r.Data, old)
			r.Data[renamed] = v
		}
	}
	return r, true, nil
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool, error) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true, nil
}

// DefaultValueTransform fills a field that is missing or nil.
type DefaultValueTransform struct {
	Field string
	Value any
}

func (t *DefaultValueTransform) Transform(r Record) (Record, bool, error) {
	if v, ok := r.Data[t.Field]; !ok || v == nil {
		r.Data[t.Field] = t.Value
	}
	return r, true, nil
}

// DedupeTransform drops records with duplicate values for the given keys.
// Several keys are combined, so "isin,date" dedupes per delivery.
type DedupeTransform struct {
	Keys []string
	seen map[string]bool
}

func NewDedupeTransform(keys ...string) *DedupeTransform {
	return &DedupeTransform{Keys: keys, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool, error) {
	v := r.Key(t.Keys)
	if t.seen[v] {
		return r, false, nil
	}
	t.seen[v] = true
	return r, true, nil
}

// SortTransform sorts all collected records by a field.
// NOTE: This is a batch transform. It must collect ALL records, so it's
// applied after the streaming phase by the engine, not per-record.
type SortTransform struct {
	Field     string
	Direction string // "asc" | "desc"
}

func (t *SortTransform) Transform(r Record) (Record, bool, error) {
	// Pass-through in streaming mode; actual sort is handled by the engine.
	return r, true, nil
}

// LimitTransform caps the number of records.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool, error) {
	t.seen++
	return r, t.seen <= t.Count, nil
}

// TypeCastTransform converts a field's value to a target type.
type TypeCastTransform struct {
	Field    string
	CastType string // "number" | "int" | "string" | "bool"
}

func (t *TypeCastTransform) Transform(r Record) (Record, bool, error) {
	v, ok := r.Data[t.Field]
	if !ok || v == nil {
		return r, true, nil
	}
	switch t.CastType {
	case "number":
		r.Data[t.Field] = toFloat(v)
	case "int":
		r.Data[t.Field] = int64(toFloat(v))
	case "string":
		r.Data[t.Field] = fmt.Sprint(v)
	case "bool":
		r.Data[t.Field] = toBool(v)
	}
	return r, true, nil
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		lower := strings.ToLower(b)
		return lower == "true" || lower == "yes" || lower == "1"
	case float64:
		return b != 0
	case int:
		return b != 0
	case int64:
		return b != 0
	default:
		return false
	}
}

// ── Domain Transforms ─────────────────────────────────────

// IntervalTransform parses a bracket-notation interval column and stores the
// fractional {lower, mean, upper} indicator under Target. Malformed text
// fails the run; non-string cells are logged and stored as zero.
type IntervalTransform struct {
	Field  string
	Target string // defaults to Field
	Log    *zap.Logger
}

func (t *IntervalTransform) Transform(r Record) (Record, bool, error) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, true, nil
	}
	b, err := interval.ParseBounds(t.Log, v)
	if err != nil {
		return r, false, fmt.Errorf("field %s: %w", t.Field, err)
	}
	ind := b.Indicator()

	target := t.Target
	if target == "" {
		target = t.Field
	} else {
		delete(r.Data, t.Field)
	}
	r.Data[target] = map[string]any{
		"lower": ind.Lower,
		"mean":  ind.Mean,
		"upper": ind.Upper,
	}
	return r, true, nil
}

// NestTransform expands dotted keys ("ESG.E") into nested maps so that the
// record has the shape of the stored document. Keys under a Flat prefix are
// gathered into one flat map instead, e.g. with Flat ["PAI"] the key
// "PAI.PAI01.scope1.indicator" lands in Data["PAI"]["PAI01.scope1.indicator"]
// for domain.PAIFromMap.
type NestTransform struct {
	Flat []string
}

func (t *NestTransform) Transform(r Record) (Record, bool, error) {
	// Sorted so that "a" is placed before "a.b" and conflicts are reported
	// deterministically.
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(r.Data))
	for _, k := range keys {
		v := r.Data[k]
		if prefix, rest, ok := t.flatKey(k); ok {
			group, _ := out[prefix].(map[string]any)
			if group == nil {
				group = map[string]any{}
				out[prefix] = group
			}
			group[rest] = v
			continue
		}
		if !strings.Contains(k, ".") {
			if err := mergeValue(out, k, v); err != nil {
				return r, false, err
			}
			continue
		}
		parts := strings.Split(k, ".")
		node := out
		for _, p := range parts[:len(parts)-1] {
			child, exists := node[p]
			if !exists || child == nil {
				m := map[string]any{}
				node[p] = m
				node = m
				continue
			}
			m, ok := child.(map[string]any)
			if !ok {
				return r, false, fmt.Errorf("nest %s: %s is not a document", k, p)
			}
			node = m
		}
		if err := mergeValue(node, parts[len(parts)-1], v); err != nil {
			return r, false, fmt.Errorf("nest %s: %w", k, err)
		}
	}
	r.Data = out
	return r, true, nil
}

func (t *NestTransform) flatKey(k string) (prefix, rest string, ok bool) {
	for _, p := range t.Flat {
		if strings.HasPrefix(k, p+".") {
			return p, k[len(p)+1:], true
		}
	}
	return "", "", false
}

// mergeValue sets m[k] = v, merging when both sides are documents.
func mergeValue(m map[string]any, k string, v any) error {
	existing, ok := m[k]
	if !ok || existing == nil {
		m[k] = v
		return nil
	}
	dst, dok := existing.(map[string]any)
	src, sok := v.(map[string]any)
	if !dok || !sok {
		return fmt.Errorf("duplicate key %s", k)
	}
	for sk, sv := range src {
		if err := mergeValue(dst, sk, sv); err != nil {
			return err
		}
	}
	return nil
}

// ── Batch Transforms ──────────────────────────────────────

// ApplyBatchSort sorts records if a SortTransform exists in the chain.
func ApplyBatchSort(records []Record, ts []Transformer) []Record {
	for _, t := range ts {
		if st, ok := t.(*SortTransform); ok && st.Field != "" {
			sorted := make([]Record, len(records))
			copy(sorted, records)
			sortRecords(sorted, st.Field, st.Direction)
			return sorted
		}
	}
	return records
}

func sortRecords(records []Record, field, direction string) {
	dir := 1
	if direction == "desc" {
		dir = -1
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].Get(field)
		b, _ := records[j].Get(field)
		return compareValues(a, b)*dir < 0
	})
}

func compareValues(a, b any) int {
	fa, aOk := toFloatSafe(a)
	fb, bOk := toFloatSafe(b)
	if aOk && bOk {
		if fa < fb {
			return -1
		}
		if fa > fb {
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloatSafe(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool, error) {
	for _, t := range ts {
		var keep bool
		var err error
		r, keep, err = t.Transform(r)
		if err != nil {
			return r, false, err
		}
		if !keep {
			return r, false, nil
		}
	}
	return r, true, nil
}

func toFloat(v any) float64 {
	f, _ := toFloatSafe(v)
	return f
}
