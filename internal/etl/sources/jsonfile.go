package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"esgdata/internal/etl"
)

// ── JSON File Source ────────────────────────────────────────
// Reads records from a JSON export. Nested objects are flattened into
// dotted keys ("ESG.E") so transforms address every value the same way;
// the nest transform rebuilds the documents.

type jsonFileSource struct{}

func init() { etl.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Path to the JSON export"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		},
	}
}

func (s *jsonFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	records, err := readJSONFile(cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *jsonFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := readJSONFile(cfg)
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

func readJSONFile(cfg etl.SourceConfig) ([]etl.Record, error) {
	filePath := cfg.String("filePath", "")
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if dataPath := cfg.String("dataPath", ""); dataPath != "" {
		current := raw
		for _, part := range strings.Split(dataPath, ".") {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid data path: %q not found", part)
			}
			current = m[part]
		}
		raw = current
	}

	return toRecords(raw), nil
}

// toRecords converts a decoded JSON value into Records.
func toRecords(raw any) []etl.Record {
	switch v := raw.(type) {
	case []any:
		records := make([]etl.Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, etl.Record{Data: flattenMap("", m, nil)})
			}
		}
		return records
	case map[string]any:
		// Single object → single record.
		return []etl.Record{{Data: flattenMap("", v, nil)}}
	default:
		return nil
	}
}

// flattenMap copies m into dst with nested objects joined by dots.
// Arrays are kept as values.
func flattenMap(prefix string, m map[string]any, dst map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(m))
	}
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenMap(key, nested, dst)
			continue
		}
		dst[key] = v
	}
	return dst
}

// inferSchema infers a Schema from a slice of Records, fields in name order.
func inferSchema(records []etl.Record) *etl.Schema {
	fieldSet := make(map[string]string) // name → type
	for _, rec := range records {
		for k, v := range rec.Data {
			if _, exists := fieldSet[k]; !exists {
				fieldSet[k] = inferType(v)
			}
		}
	}

	names := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := &etl.Schema{}
	for _, name := range names {
		schema.Fields = append(schema.Fields, etl.Field{Name: name, Type: fieldSet[name]})
	}
	return schema
}

func inferType(v any) string {
	if v == nil {
		return "text"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Float64, reflect.Float32, reflect.Int, reflect.Int64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice:
		return "array"
	default:
		return "text"
	}
}
