package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"esgdata/internal/logging"
)

// ── SyncJob ────────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → destination.Write.

// SyncJob holds the configuration for a single import.
type SyncJob struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"sourceType"`
	SourceCfg     SourceConfig      `json:"sourceConfig"`
	Transforms    []TransformConfig `json:"transforms,omitempty"`
	SyncMode      SyncMode          `json:"syncMode"`
	DedupeKey     string            `json:"dedupeKey,omitempty"` // comma-separated, e.g. "isin,date"
	TriggerType   string            `json:"triggerType"`         // "manual" | "schedule" | "file_watch"
	TriggerConfig string            `json:"triggerConfig"`       // cron expression or watch path
	Enabled       bool              `json:"enabled"`
	LastRunAt     time.Time         `json:"lastRunAt"`
	LastStatus    string            `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string            `json:"lastError"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// TransformConfig is a declarative transform definition (stored as JSON).
type TransformConfig struct {
	Type   string         `json:"type"` // "filter" | "rename" | "select" | "type_cast" | "default_value" | "dedupe" | "limit" | "sort" | "interval" | "nest"
	Config map[string]any `json:"config"`
}

// SyncResult is the outcome of running a sync job.
type SyncResult struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// SyncRunLog is a historical record of a sync run.
type SyncRunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs sync jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
	Log  *zap.Logger
}

// RunSync executes a sync job end-to-end.
func (e *Engine) RunSync(ctx context.Context, job *SyncJob) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{JobID: job.ID}
	log := logging.OrNop(e.Log).With(zap.String("job", job.ID), zap.String("source", job.SourceType))

	fail := func(stage string, err error) (*SyncResult, error) {
		err = fmt.Errorf("%s: %w", stage, err)
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		log.Error("import failed", zap.Error(err), zap.Int("rowsRead", result.RowsRead))
		return result, err
	}

	// 1. Resolve source from registry.
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail("source", err)
	}

	if err := source.Spec().Validate(job.SourceCfg); err != nil {
		return fail("config", err)
	}

	// 2. Discover schema; fails fast on a bad source config.
	schema, err := source.Discover(ctx, job.SourceCfg)
	if err != nil {
		return fail("discover", err)
	}
	log.Debug("discovered", zap.Strings("fields", schema.FieldNames()))

	// 3. Build transformer chain from config.
	transformers, err := buildTransformers(job.Transforms, job.DedupeKey, log)
	if err != nil {
		return fail("transforms", err)
	}

	// 4. Read + transform records. A transform error cancels the read.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(readCtx, job.SourceCfg)

	var records []Record
	var transformErr error
	for rec := range recCh {
		result.RowsRead++
		transformed, keep, err := ApplyTransformers(rec, transformers)
		if err != nil {
			transformErr = fmt.Errorf("row %d: %w", result.RowsRead, err)
			cancel()
			break
		}
		if keep {
			records = append(records, transformed)
		}
	}
	if transformErr != nil {
		drain(recCh)
		<-errCh
		return fail("transform", transformErr)
	}

	// Check for source errors.
	if err := <-errCh; err != nil {
		return fail("read", err)
	}

	// 4b. Apply batch transforms (sort).
	records = ApplyBatchSort(records, transformers)

	// 5. Write to destination.
	mode := job.SyncMode
	if mode == "" {
		mode = SyncAppend
	}
	if e.Dest == nil {
		return fail("write", ErrNoDestination)
	}
	written, err := e.Dest.Write(ctx, records, mode)
	result.RowsWritten = written
	if err != nil {
		return fail("write", err)
	}

	result.Status = "success"
	result.Duration = time.Since(start)
	log.Info("import finished",
		zap.Int("rowsRead", result.RowsRead),
		zap.Int("rowsWritten", written),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Preview executes only the source read phase and returns up to maxRows records.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, maxRows int) ([]Record, *Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}
	if err := source.Spec().Validate(cfg); err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(readCtx, cfg)

	var records []Record
	for rec := range recCh {
		records = append(records, rec)
		if len(records) >= maxRows {
			break
		}
	}

	// Stop the reader, drain what it already queued, and check for errors.
	cancel()
	drain(recCh)
	if err := <-errCh; err != nil && len(records) < maxRows {
		return records, schema, err
	}

	return records, schema, nil
}

func drain(ch <-chan Record) {
	for range ch {
	}
}

// BuildTransformers converts declarative TransformConfig into Transformer instances.
// It is exported for callers that want to try a chain without running a job.
func BuildTransformers(configs []TransformConfig, log *zap.Logger) ([]Transformer, error) {
	return buildTransformers(configs, "", log)
}

func buildTransformers(configs []TransformConfig, dedupeKey string, log *zap.Logger) ([]Transformer, error) {
	var ts []Transformer

	for i, tc := range configs {
		field, _ := tc.Config["field"].(string)

		switch tc.Type {
		case "filter":
			op, _ := tc.Config["op"].(string)
			if field == "" || op == "" {
				return nil, fmt.Errorf("transform %d (filter): field and op are required", i)
			}
			ts = append(ts, &FilterTransform{Field: field, Op: op, Value: tc.Config["value"]})

		case "rename":
			mapping, ok := tc.Config["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("transform %d (rename): mapping is required", i)
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		case "select":
			fields := stringList(tc.Config["fields"])
			if len(fields) == 0 {
				return nil, fmt.Errorf("transform %d (select): fields are required", i)
			}
			ts = append(ts, &SelectTransform{Fields: fields})

		case "type_cast":
			castType, _ := tc.Config["castType"].(string)
			if field == "" || castType == "" {
				return nil, fmt.Errorf("transform %d (type_cast): field and castType are required", i)
			}
			ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})

		case "default_value":
			if field == "" {
				return nil, fmt.Errorf("transform %d (default_value): field is required", i)
			}
			ts = append(ts, &DefaultValueTransform{Field: field, Value: tc.Config["value"]})

		case "dedupe":
			keys := stringList(tc.Config["keys"])
			if len(keys) == 0 && field != "" {
				keys = []string{field}
			}
			if len(keys) == 0 {
				return nil, fmt.Errorf("transform %d (dedupe): keys are required", i)
			}
			ts = append(ts, NewDedupeTransform(keys...))

		case "limit":
			count, ok := intValue(tc.Config["count"])
			if !ok || count <= 0 {
				return nil, fmt.Errorf("transform %d (limit): count must be positive", i)
			}
			ts = append(ts, NewLimitTransform(count))

		case "sort":
			direction, _ := tc.Config["direction"].(string)
			if direction == "" {
				direction = "asc"
			}
			if field == "" {
				return nil, fmt.Errorf("transform %d (sort): field is required", i)
			}
			ts = append(ts, &SortTransform{Field: field, Direction: direction})

		case "interval":
			target, _ := tc.Config["target"].(string)
			if field == "" {
				return nil, fmt.Errorf("transform %d (interval): field is required", i)
			}
			ts = append(ts, &IntervalTransform{Field: field, Target: target, Log: log})

		case "nest":
			ts = append(ts, &NestTransform{Flat: stringList(tc.Config["flat"])})

		default:
			return nil, fmt.Errorf("transform %d: unknown type %q", i, tc.Type)
		}
	}

	// Dedupe is always applied last if a key is specified.
	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(stringList(dedupeKey)...))
	}

	return ts, nil
}

// stringList accepts a []any, []string or comma-separated string.
func stringList(v any) []string {
	var out []string
	switch l := v.(type) {
	case []any:
		for _, item := range l {
			out = append(out, fmt.Sprint(item))
		}
	case []string:
		out = append(out, l...)
	case string:
		for _, item := range strings.Split(l, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
