package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"esgdata/internal/domain"
	"esgdata/internal/logging"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes records into a target system.
// The only destination is the sustainability_reporting collection.

// SyncMode determines how records are written to the destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // drop the delivery dates being imported, then insert
	SyncAppend  SyncMode = "append"  // upsert without deleting
)

// ErrMissingKey is returned for records without isin or date.
var ErrMissingKey = errors.New("record requires isin and date")

// ErrNoDestination is returned when a job runs without a configured destination.
var ErrNoDestination = errors.New("no destination configured")

// Destination writes records to a target system.
type Destination interface {
	Write(ctx context.Context, records []Record, mode SyncMode) (int, error)
}

// ReportingStore is the part of the reporting store the writer needs.
// dbclient.MongoStore implements it.
type ReportingStore interface {
	UpsertReporting(ctx context.Context, r *domain.SustainabilityReporting) error
	DeleteDelivery(ctx context.Context, date time.Time) (int64, error)
}

// ── MongoDB Destination ────────────────────────────────────

// MongoWriter implements Destination for the reporting collection.
type MongoWriter struct {
	Store ReportingStore
	Log   *zap.Logger
	// Concurrency bounds parallel upserts. Below 2 records are written in order.
	Concurrency int
}

func (w *MongoWriter) Write(ctx context.Context, records []Record, mode SyncMode) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	log := logging.OrNop(w.Log)

	// Decode everything first so a bad row fails the run before any write.
	docs := make([]*domain.SustainabilityReporting, 0, len(records))
	for i, rec := range records {
		doc, err := DecodeReporting(rec)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}

	if mode == SyncReplace {
		cleared := make(map[time.Time]bool)
		for _, doc := range docs {
			if cleared[doc.Date] {
				continue
			}
			cleared[doc.Date] = true
			n, err := w.Store.DeleteDelivery(ctx, doc.Date)
			if err != nil {
				return 0, fmt.Errorf("clear delivery %s: %w", doc.Date.Format(time.DateOnly), err)
			}
			log.Info("cleared delivery", zap.Time("date", doc.Date), zap.Int64("deleted", n))
		}
	}

	limit := w.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var written atomic.Int64
	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := w.Store.UpsertReporting(gctx, doc); err != nil {
				return fmt.Errorf("upsert record %d (%s): %w", i, doc.ISIN, err)
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return int(written.Load()), err
}

// dateLayouts are the delivery date formats seen in vendor exports.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"02.01.2006",
	"2006/01/02",
}

// DecodeReporting converts a nested record into a reporting document by
// round-tripping it through BSON. The date may be a time.Time or a string in
// one of the vendor layouts. The PAI map, flat or nested, is flattened to
// dotted keys and decoded with domain.PAIFromMap so years and indicators
// are coerced the same way for every feed.
func DecodeReporting(rec Record) (*domain.SustainabilityReporting, error) {
	data := make(map[string]any, len(rec.Data))
	for k, v := range rec.Data {
		if v != nil {
			data[k] = v
		}
	}

	isin, _ := data["isin"].(string)
	if strings.TrimSpace(isin) == "" || data["date"] == nil {
		return nil, ErrMissingKey
	}
	data["isin"] = strings.TrimSpace(isin)

	date, err := parseDate(data["date"])
	if err != nil {
		return nil, err
	}
	data["date"] = date

	var pai *domain.PAI
	if m, ok := data["PAI"].(map[string]any); ok {
		pai, err = domain.PAIFromMap(flattenKeys(m))
		if err != nil {
			return nil, fmt.Errorf("PAI: %w", err)
		}
		delete(data, "PAI")
	}

	if s, ok := data["sustainable_products_and_services"].(string); ok {
		data["sustainable_products_and_services"] = splitList(s)
	}

	raw, err := bson.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	doc := &domain.SustainabilityReporting{}
	if err := bson.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if pai != nil {
		doc.PAI = pai
	}
	return doc, nil
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised date %q", d)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %v (%T)", v, v)
	}
}

// flattenKeys turns nested maps back into dotted keys. Keys that are
// already dotted pass through.
func flattenKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// splitList splits a ";"-separated cell into trimmed, non-empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
