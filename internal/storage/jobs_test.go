package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgdata/internal/etl"
	"esgdata/internal/storage"
)

func newStore(t *testing.T) *storage.ImportStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "nested", "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewImportStore(db)
}

func sampleJob() *etl.SyncJob {
	return &etl.SyncJob{
		Name:       "monthly vendor export",
		SourceType: "csv_file",
		SourceCfg:  etl.SourceConfig{"filePath": "/data/esg.csv", "delimiter": ";"},
		Transforms: []etl.TransformConfig{
			{Type: "interval", Config: map[string]any{"field": "SDG", "target": "sdg_involvement"}},
			{Type: "nest", Config: map[string]any{"flat": []any{"PAI"}}},
		},
		DedupeKey: "isin,date",
		Enabled:   true,
	}
}

func TestImportStore_JobRoundTrip(t *testing.T) {
	s := newStore(t)

	job := sampleJob()
	require.NoError(t, s.CreateJob(job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, etl.SyncAppend, job.SyncMode)
	assert.Equal(t, "manual", job.TriggerType)

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Name, got.Name)
	assert.Equal(t, "/data/esg.csv", got.SourceCfg["filePath"])
	require.Len(t, got.Transforms, 2)
	assert.Equal(t, "interval", got.Transforms[0].Type)
	assert.Equal(t, []any{"PAI"}, got.Transforms[1].Config["flat"])
	assert.True(t, got.Enabled)
	assert.True(t, got.LastRunAt.IsZero())

	got.SyncMode = etl.SyncReplace
	got.TriggerType = "schedule"
	got.TriggerConfig = "0 6 * * *"
	require.NoError(t, s.UpdateJob(got))

	again, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, etl.SyncReplace, again.SyncMode)
	assert.Equal(t, "0 6 * * *", again.TriggerConfig)
}

func TestImportStore_Status(t *testing.T) {
	s := newStore(t)
	job := sampleJob()
	require.NoError(t, s.CreateJob(job))

	require.NoError(t, s.UpdateJobStatus(job.ID, "error", "transform: row 3: interval: unable to convert"))

	got, err := s.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "error", got.LastStatus)
	assert.Contains(t, got.LastError, "unable to convert")
	assert.False(t, got.LastRunAt.IsZero())
}

func TestImportStore_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetJob("missing")
	assert.ErrorIs(t, err, storage.ErrJobNotFound)
	assert.ErrorIs(t, s.DeleteJob("missing"), storage.ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateJob(&etl.SyncJob{ID: "missing"}), storage.ErrJobNotFound)
}

func TestImportStore_ListEnabledTriggeredJobs(t *testing.T) {
	s := newStore(t)

	manual := sampleJob()
	scheduled := sampleJob()
	scheduled.TriggerType = "schedule"
	scheduled.TriggerConfig = "@daily"
	watched := sampleJob()
	watched.TriggerType = "file_watch"
	watched.TriggerConfig = "/data/esg.csv"
	disabled := sampleJob()
	disabled.TriggerType = "schedule"
	disabled.Enabled = false

	for _, j := range []*etl.SyncJob{manual, scheduled, watched, disabled} {
		require.NoError(t, s.CreateJob(j))
	}

	all, err := s.ListJobs()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	triggered, err := s.ListEnabledTriggeredJobs()
	require.NoError(t, err)
	ids := []string{}
	for _, j := range triggered {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []string{scheduled.ID, watched.ID}, ids)
}

func TestImportStore_RunLogs(t *testing.T) {
	s := newStore(t)
	job := sampleJob()
	require.NoError(t, s.CreateJob(job))

	base := time.Date(2023, 10, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l := &etl.SyncRunLog{
			JobID:       job.ID,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			Status:      "success",
			RowsRead:    10 * (i + 1),
			RowsWritten: 10 * (i + 1),
		}
		require.NoError(t, s.CreateRunLog(l))
		assert.NotEmpty(t, l.ID)
	}

	logs, err := s.ListRunLogs(job.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 30, logs[0].RowsRead)
	assert.True(t, logs[0].StartedAt.Equal(base.Add(2*time.Hour)))

	require.NoError(t, s.DeleteJob(job.ID))
	logs, err = s.ListRunLogs(job.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestNew_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := storage.New(path)
	require.NoError(t, err)
	v, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	job := sampleJob()
	require.NoError(t, storage.NewImportStore(db).CreateJob(job))
	require.NoError(t, db.Close())

	db, err = storage.New(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := storage.NewImportStore(db).GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Name, got.Name)
}
