package etl_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgdata/internal/domain"
	"esgdata/internal/etl"
)

// fakeStore records what the writer does instead of talking to MongoDB.
type fakeStore struct {
	mu       sync.Mutex
	upserted []*domain.SustainabilityReporting
	deleted  []time.Time
	failISIN string
}

func (s *fakeStore) UpsertReporting(_ context.Context, r *domain.SustainabilityReporting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ISIN == s.failISIN {
		return errors.New("duplicate key")
	}
	s.upserted = append(s.upserted, r)
	return nil
}

func (s *fakeStore) DeleteDelivery(_ context.Context, date time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, date)
	return 3, nil
}

// ─────────────────────────────────────────────────────────────
// Record → document decoding
// ─────────────────────────────────────────────────────────────

func TestDecodeReporting_NestedRecord(t *testing.T) {
	doc, err := etl.DecodeReporting(rec(
		"isin", " DE0005190003 ",
		"date", "2023-10-01",
		"ESG", map[string]any{"ESG": 55.0, "E": 60.0, "S": 50.0, "G": 48.0},
		"EU_taxonomy", map[string]any{"eligible": true},
		"CRA", map[string]any{"ENV": map[string]any{"ENV": 3.0}},
		"sdg_involvement", map[string]any{"lower": 0.0, "mean": 0.05, "upper": 0.1},
		"impact_theme", map[string]any{"health": map[string]any{"lower": 0.1, "mean": 0.15, "upper": 0.2}},
		"sustainable_products_and_services", "Solar panels; Heat pumps;",
		"energy_transition_score", 72.0,
		"vendor_comment", "ignored",
		"CAS", nil,
	))
	require.NoError(t, err)

	assert.Equal(t, "DE0005190003", doc.ISIN)
	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), doc.Date)
	require.NotNil(t, doc.ESG)
	assert.Equal(t, domain.ESGRobust, doc.ESG.Rating())
	assert.Equal(t, 60, doc.ESG.E)
	assert.True(t, doc.EUTaxonomy.Eligible)
	assert.Equal(t, domain.CRACritical, doc.CRA.ENV.ENV)
	assert.False(t, doc.CRA.IsAcceptable())
	assert.Equal(t, 0.1, doc.SDGInvolvement.Upper)
	assert.Equal(t, 0.2, doc.ImpactTheme.Health.Upper)
	assert.Nil(t, doc.ImpactTheme.Infrastructure)
	assert.Equal(t, []string{"Solar panels", "Heat pumps"}, doc.SustainableProductsAndServices)
	require.NotNil(t, doc.EnergyTransitionScore)
	assert.Equal(t, 72, *doc.EnergyTransitionScore)
	assert.Nil(t, doc.CAS)
	assert.True(t, doc.ID.IsZero())
}

func TestDecodeReporting_FlatPAI(t *testing.T) {
	doc, err := etl.DecodeReporting(rec(
		"isin", "US0378331005",
		"date", time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
		"PAI", map[string]any{
			"PAI01.scope1.indicator":      0.1234,
			"PAI01.scope1.reporting_year": 2022.0,
			"PAI10.indicator":             false,
			"PAI99.indicator":             7.0,
		},
	))
	require.NoError(t, err)
	require.NotNil(t, doc.PAI)
	require.NotNil(t, doc.PAI.PAI01)
	assert.Equal(t, 0.1234, doc.PAI.PAI01.Scope1.Indicator)
	assert.Equal(t, "2022", doc.PAI.PAI01.Scope1.ReportingYear)
	require.NotNil(t, doc.PAI.PAI10)
	assert.False(t, doc.PAI.PAI10.Indicator)
	assert.Contains(t, doc.PAI.AdditionalIndicators, "PAI99.indicator")
}

func TestDecodeReporting_CRALabels(t *testing.T) {
	nested, _, err := (&etl.NestTransform{}).Transform(rec(
		"isin", "DE0005190003",
		"date", "2024-01-31",
		"CRA.ENV.ENV", "Critical",
		"CRA.HRT.c_1_1", "High",
		"CRA.HRT.c_2_1", 2.0,
		"CRA.CS.c_3_1", "",
	))
	require.NoError(t, err)

	doc, err := etl.DecodeReporting(nested)
	require.NoError(t, err)
	require.NotNil(t, doc.CRA)
	assert.Equal(t, domain.CRACritical, doc.CRA.ENV.ENV)
	assert.Equal(t, domain.CRAHigh, doc.CRA.HRT.C1_1)
	assert.Equal(t, domain.CRASignificant, doc.CRA.HRT.C2_1)
	assert.Equal(t, domain.CRANoIndication, doc.CRA.CS.C3_1)
	assert.False(t, doc.CRA.IsAcceptable())

	_, err = etl.DecodeReporting(rec("isin", "X", "date", "2024-01-31",
		"CRA", map[string]any{"ENV": map[string]any{"ENV": 7.0}}))
	assert.ErrorContains(t, err, "out of range")
}

func TestDecodeReporting_NestedPAI(t *testing.T) {
	nested, _, err := (&etl.NestTransform{}).Transform(rec(
		"isin", "DE0005190003",
		"date", "2024-01-31",
		"PAI.PAI10.indicator", false,
		"PAI.PAI10.reporting_year", 2022.0,
		"PAI.PAI01.scope1.indicator", "0.5",
		"PAI.PAI17.note", "kept",
	))
	require.NoError(t, err)

	doc, err := etl.DecodeReporting(nested)
	require.NoError(t, err)
	require.NotNil(t, doc.PAI)
	require.NotNil(t, doc.PAI.PAI10)
	assert.False(t, doc.PAI.PAI10.Indicator)
	assert.Equal(t, "2022", doc.PAI.PAI10.ReportingYear)
	assert.Equal(t, 0.5, doc.PAI.PAI01.Scope1.Indicator)
	assert.Equal(t, map[string]any{"PAI17.note": "kept"}, doc.PAI.AdditionalIndicators)
}

func TestDecodeReporting_DateLayouts(t *testing.T) {
	want := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2023-10-01", "2023-10-01T00:00:00Z", "2023-10-01 00:00:00", "01.10.2023", "2023/10/01"} {
		doc, err := etl.DecodeReporting(rec("isin", "X", "date", s))
		require.NoError(t, err, s)
		assert.True(t, want.Equal(doc.Date), s)
	}

	_, err := etl.DecodeReporting(rec("isin", "X", "date", "October 2023"))
	assert.Error(t, err)
}

func TestDecodeReporting_MissingKey(t *testing.T) {
	_, err := etl.DecodeReporting(rec("date", "2023-10-01"))
	assert.ErrorIs(t, err, etl.ErrMissingKey)

	_, err = etl.DecodeReporting(rec("isin", "X"))
	assert.ErrorIs(t, err, etl.ErrMissingKey)
}

// ─────────────────────────────────────────────────────────────
// MongoWriter
// ─────────────────────────────────────────────────────────────

func TestMongoWriter_ReplaceClearsEachDeliveryOnce(t *testing.T) {
	store := &fakeStore{}
	w := &etl.MongoWriter{Store: store}

	n, err := w.Write(context.Background(), []etl.Record{
		rec("isin", "A", "date", "2023-10-01"),
		rec("isin", "B", "date", "2023-10-01"),
		rec("isin", "A", "date", "2023-11-01"),
	}, etl.SyncReplace)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.deleted, 2)
	assert.Len(t, store.upserted, 3)
}

func TestMongoWriter_AppendDoesNotDelete(t *testing.T) {
	store := &fakeStore{}
	w := &etl.MongoWriter{Store: store}

	n, err := w.Write(context.Background(), []etl.Record{rec("isin", "A", "date", "2023-10-01")}, etl.SyncAppend)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, store.deleted)
}

func TestMongoWriter_BadRecordWritesNothing(t *testing.T) {
	store := &fakeStore{}
	w := &etl.MongoWriter{Store: store}

	_, err := w.Write(context.Background(), []etl.Record{
		rec("isin", "A", "date", "2023-10-01"),
		rec("isin", "", "date", "2023-10-01"),
	}, etl.SyncReplace)
	assert.ErrorIs(t, err, etl.ErrMissingKey)
	assert.Empty(t, store.deleted)
	assert.Empty(t, store.upserted)
}

func TestMongoWriter_UpsertError(t *testing.T) {
	store := &fakeStore{failISIN: "B"}
	w := &etl.MongoWriter{Store: store}

	n, err := w.Write(context.Background(), []etl.Record{
		rec("isin", "A", "date", "2023-10-01"),
		rec("isin", "B", "date", "2023-10-01"),
	}, etl.SyncAppend)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestMongoWriter_ConcurrentUpserts(t *testing.T) {
	store := &fakeStore{}
	w := &etl.MongoWriter{Store: store, Concurrency: 4}

	var records []etl.Record
	for i := 0; i < 20; i++ {
		records = append(records, rec("isin", fmt.Sprintf("DE%010d", i), "date", "2023-10-01"))
	}
	n, err := w.Write(context.Background(), records, etl.SyncAppend)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Len(t, store.upserted, 20)
}

func TestMongoWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	w := &etl.MongoWriter{Store: store}
	n, err := w.Write(ctx, []etl.Record{rec("isin", "A", "date", "2023-10-01")}, etl.SyncAppend)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
