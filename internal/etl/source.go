package etl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts rows from a vendor delivery. Implementations live in
// etl/sources/, one file per source type, and register themselves from
// init. A run calls Discover first, so a bad config fails before any
// row is read.

// SourceConfig is the per-job configuration of a source, as stored with
// the job. Values arrive from JSON, so numbers are float64.
type SourceConfig map[string]any

// String returns a config value as a string, or def when unset.
func (c SourceConfig) String(key, def string) string {
	if v, ok := c[key]; ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return def
}

// ConfigField describes one configuration key a source understands.
type ConfigField struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // "string" | "select" | "number" | "file"
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"` // for "select"
	Default  string   `json:"default,omitempty"`
	Help     string   `json:"help,omitempty"`
}

// SourceSpec describes a source type. The CLI and the MCP server list
// these so callers know which config keys to pass.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Validate checks cfg against the declared fields. Unknown keys are
// allowed; sources ignore them.
func (s SourceSpec) Validate(cfg SourceConfig) error {
	var errs []error
	for _, f := range s.ConfigFields {
		v := cfg.String(f.Key, "")
		if v == "" {
			if f.Required {
				errs = append(errs, fmt.Errorf("%s: %s is required", s.Type, f.Key))
			}
			continue
		}
		switch f.Type {
		case "number":
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				errs = append(errs, fmt.Errorf("%s: %s must be a number, got %q", s.Type, f.Key, v))
			}
		case "select":
			if !slices.Contains(f.Options, v) {
				errs = append(errs, fmt.Errorf("%s: %s must be one of %v, got %q", s.Type, f.Key, f.Options, v))
			}
		}
	}
	return errors.Join(errs...)
}

// Source is the interface every data source must implement.
type Source interface {
	Spec() SourceSpec

	// Discover opens the source and reports the fields of its rows.
	Discover(ctx context.Context, cfg SourceConfig) (*Schema, error)

	// Read streams records until the source is exhausted or ctx ends.
	// Both channels are closed when reading stops; at most one error is
	// sent, and the error channel is buffered so the reader never blocks.
	Read(ctx context.Context, cfg SourceConfig) (<-chan Record, <-chan error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource makes a source available under its type. A later
// registration of the same type replaces the earlier one.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, ordered by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	registryMu.RUnlock()
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}
