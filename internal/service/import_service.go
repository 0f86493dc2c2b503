package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"esgdata/internal/etl"
	_ "esgdata/internal/etl/sources" // registers csv_file, json_file, database
	"esgdata/internal/logging"
	"esgdata/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Import Service: business logic for import jobs
// ─────────────────────────────────────────────────────────────

const (
	runTimeout     = 5 * time.Minute
	previewTimeout = 30 * time.Second
	previewRows    = 10
	watchDebounce  = 500 * time.Millisecond
)

// ErrAlreadyRunning is returned when a job is started while a run is in flight.
var ErrAlreadyRunning = errors.New("job is already running")

// ImportService manages import jobs, scheduling and file watching.
type ImportService struct {
	store   *storage.ImportStore
	dest    etl.Destination
	emitter EventEmitter
	log     *zap.Logger
	runs    runGuard

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
	cronCount   int
	watchCount  int
}

// NewImportService creates an ImportService ready for use.
func NewImportService(
	store *storage.ImportStore,
	dest etl.Destination,
	emitter EventEmitter,
	log *zap.Logger,
) *ImportService {
	if emitter == nil {
		emitter = &LogEmitter{Log: log}
	}
	return &ImportService{
		store:   store,
		dest:    dest,
		emitter: emitter,
		log:     logging.OrNop(log).Named("import"),
	}
}

// ── Job CRUD ───────────────────────────────────────────────

// JobInput is the user-editable part of a job.
type JobInput struct {
	Name          string                `json:"name"`
	SourceType    string                `json:"sourceType"`
	SourceConfig  map[string]any        `json:"sourceConfig"`
	Transforms    []etl.TransformConfig `json:"transforms"`
	SyncMode      string                `json:"syncMode"`
	DedupeKey     string                `json:"dedupeKey"`
	TriggerType   string                `json:"triggerType"`
	TriggerConfig string                `json:"triggerConfig"`
	Enabled       bool                  `json:"enabled"`
}

// validate rejects jobs that could only fail at run time.
func (in JobInput) validate() error {
	src, err := etl.GetSource(in.SourceType)
	if err != nil {
		return err
	}
	if err := src.Spec().Validate(in.SourceConfig); err != nil {
		return err
	}
	if _, err := etl.BuildTransformers(in.Transforms, nil); err != nil {
		return err
	}
	switch etl.SyncMode(in.SyncMode) {
	case "", etl.SyncAppend, etl.SyncReplace:
	default:
		return fmt.Errorf("unknown sync mode %q", in.SyncMode)
	}
	switch in.TriggerType {
	case "", "manual":
	case "schedule":
		if _, err := cron.ParseStandard(in.TriggerConfig); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", in.TriggerConfig, err)
		}
	case "file_watch":
		if in.TriggerConfig == "" {
			return fmt.Errorf("file_watch trigger needs a path")
		}
	default:
		return fmt.Errorf("unknown trigger type %q", in.TriggerType)
	}
	return nil
}

func (in JobInput) apply(job *etl.SyncJob) {
	job.Name = in.Name
	job.SourceType = in.SourceType
	job.SourceCfg = in.SourceConfig
	job.Transforms = in.Transforms
	job.SyncMode = etl.SyncMode(in.SyncMode)
	job.DedupeKey = in.DedupeKey
	job.TriggerType = in.TriggerType
	job.TriggerConfig = in.TriggerConfig
	job.Enabled = in.Enabled
	if job.SyncMode == "" {
		job.SyncMode = etl.SyncAppend
	}
	if job.TriggerType == "" {
		job.TriggerType = "manual"
	}
}

func (s *ImportService) CreateJob(ctx context.Context, input JobInput) (*etl.SyncJob, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	job := &etl.SyncJob{}
	input.apply(job)

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	s.log.Info("job created", zap.String("job", job.ID), zap.String("name", job.Name))
	if job.TriggerType != "manual" {
		s.RestartWatchers(ctx)
	}
	return job, nil
}

func (s *ImportService) GetJob(id string) (*etl.SyncJob, error) {
	return s.store.GetJob(id)
}

func (s *ImportService) ListJobs() ([]etl.SyncJob, error) {
	return s.store.ListJobs()
}

func (s *ImportService) UpdateJob(ctx context.Context, id string, input JobInput) error {
	if err := input.validate(); err != nil {
		return err
	}
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	input.apply(job)

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *ImportService) DeleteJob(ctx context.Context, id string) error {
	if s.runs.isActive(id) {
		return fmt.Errorf("job %s: %w", id, ErrAlreadyRunning)
	}
	if err := s.store.DeleteJob(id); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single import synchronously, records a run log and the
// job status, and emits a completion or failure event.
func (s *ImportService) RunJob(ctx context.Context, id string) (*etl.SyncResult, error) {
	return s.runJob(ctx, id, "manual")
}

func (s *ImportService) runJob(ctx context.Context, id, trigger string) (*etl.SyncResult, error) {
	release, ok := s.runs.acquire(id, trigger)
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrAlreadyRunning)
	}
	defer release()

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("job", id), zap.String("trigger", trigger))

	if err := s.store.UpdateJobStatus(id, "running", ""); err != nil {
		log.Warn("status update failed", zap.Error(err))
	}

	engine := &etl.Engine{Dest: s.dest, Log: log}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	result, runErr := engine.RunSync(runCtx, job)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	runLog := &etl.SyncRunLog{
		JobID:       id,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Error:       errMsg,
	}
	if err := s.store.CreateRunLog(runLog); err != nil {
		log.Warn("run log insert failed", zap.Error(err))
	}
	if err := s.store.UpdateJobStatus(id, result.Status, errMsg); err != nil {
		log.Warn("status update failed", zap.Error(err))
	}

	event := ImportEvent{
		JobID:       id,
		Trigger:     trigger,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Error:       errMsg,
	}
	if runErr != nil {
		s.emitter.Emit(ctx, EventImportFailed, event)
	} else {
		s.emitter.Emit(ctx, EventImportCompleted, event)
	}

	return result, runErr
}

// RunAdHoc runs a job definition that is not stored, e.g. from the command
// line. No run log is written.
func (s *ImportService) RunAdHoc(ctx context.Context, input JobInput) (*etl.SyncResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	job := &etl.SyncJob{ID: "adhoc"}
	input.apply(job)

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	engine := &etl.Engine{Dest: s.dest, Log: s.log.With(zap.String("job", job.ID))}
	return engine.RunSync(runCtx, job)
}

// ListSources returns the available source descriptors.
func (s *ImportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRunLogs returns the most recent run logs for a job.
func (s *ImportService) ListRunLogs(jobID string, limit int) ([]etl.SyncRunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListRunLogs(jobID, limit)
}

// ── Preview / Schema Discovery ─────────────────────────────

// PreviewResult is the response from PreviewSource.
type PreviewResult struct {
	Schema  *etl.Schema  `json:"schema"`
	Records []etl.Record `json:"records"`
}

// PreviewSource reads the first rows of a source, and runs them through
// transforms when any are given, without writing anything.
func (s *ImportService) PreviewSource(ctx context.Context, sourceType, cfgJSON string, transforms []etl.TransformConfig) (*PreviewResult, error) {
	var cfg etl.SourceConfig
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("parse source config: %w", err)
	}

	chain, err := etl.BuildTransformers(transforms, s.log)
	if err != nil {
		return nil, err
	}

	engine := &etl.Engine{Log: s.log}

	previewCtx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	records, schema, err := engine.Preview(previewCtx, sourceType, cfg, previewRows)
	if err != nil {
		return nil, err
	}

	out := make([]etl.Record, 0, len(records))
	for i, r := range records {
		r, keep, err := etl.ApplyTransformers(r, chain)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if keep {
			out = append(out, r)
		}
	}
	return &PreviewResult{Schema: schema, Records: etl.ApplyBatchSort(out, chain)}, nil
}

// ── Watchers (cron + file_watch) ──────────────────────────

// cronLogger routes robfig/cron's logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// RestartWatchers tears down the current watcher/cron and rebuilds them from scratch.
func (s *ImportService) RestartWatchers(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()

	jobs, err := s.store.ListEnabledTriggeredJobs()
	if err != nil {
		s.log.Error("watcher: failed to list jobs", zap.Error(err))
		return
	}

	// ── Cron jobs ──
	c := cron.New(cron.WithLogger(cronLogger{s: s.log.Sugar()}))
	scheduled := 0
	for _, j := range jobs {
		if j.TriggerType != "schedule" || j.TriggerConfig == "" {
			continue
		}
		jid := j.ID
		_, err := c.AddFunc(j.TriggerConfig, func() {
			if _, err := s.runJob(ctx, jid, "schedule"); err != nil {
				s.log.Error("cron: job failed", zap.String("job", jid), zap.Error(err))
			}
		})
		if err != nil {
			s.log.Error("cron: invalid expression", zap.String("job", jid), zap.String("expr", j.TriggerConfig), zap.Error(err))
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		s.cronCount = scheduled
		s.log.Info("cron: scheduled jobs", zap.Int("count", scheduled))
	}

	// ── File watchers ──
	pathToJob := make(map[string]string)
	for _, j := range jobs {
		if j.TriggerType != "file_watch" || j.TriggerConfig == "" {
			continue
		}
		absPath, err := filepath.Abs(j.TriggerConfig)
		if err != nil {
			s.log.Error("watcher: bad path", zap.String("path", j.TriggerConfig), zap.Error(err))
			continue
		}
		pathToJob[absPath] = j.ID
	}
	if len(pathToJob) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Error("watcher: failed to create watcher", zap.Error(err))
		return
	}
	s.watcher = watcher

	// Directories are watched rather than files so that exports replaced by
	// rename are still seen.
	watchedDirs := make(map[string]bool)
	for absPath := range pathToJob {
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Error("watcher: failed to watch dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	s.watchCount = len(pathToJob)

	go s.watchLoop(ctx, watchCtx, watcher, pathToJob)

	s.log.Info("watcher: watching files", zap.Int("count", len(pathToJob)))
}

func (s *ImportService) watchLoop(ctx, watchCtx context.Context, watcher *fsnotify.Watcher, pathToJob map[string]string) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-watchCtx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absPath, _ := filepath.Abs(event.Name)
			jobID, ok := pathToJob[absPath]
			if !ok {
				continue
			}
			if t, exists := timers[jobID]; exists {
				t.Stop()
			}
			jid := jobID
			timers[jobID] = time.AfterFunc(watchDebounce, func() {
				s.log.Info("watcher: file changed", zap.String("path", absPath), zap.String("job", jid))
				if _, err := s.runJob(ctx, jid, "file_watch"); err != nil {
					s.log.Error("watcher: run failed", zap.String("job", jid), zap.Error(err))
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("watcher: error", zap.Error(err))
		}
	}
}

// Watching reports how many scheduled and file-watch jobs are active.
func (s *ImportService) Watching() (scheduled, files int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cronCount, s.watchCount
}

// ActiveRuns lists the imports executing right now, oldest first.
func (s *ImportService) ActiveRuns() []ActiveRun {
	return s.runs.list()
}

// WaitRunning blocks until all running jobs finish. It returns ctx.Err()
// when the grace period runs out first.
func (s *ImportService) WaitRunning(ctx context.Context) error {
	return s.runs.wait(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ImportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()
}

func (s *ImportService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
	s.cronCount = 0
	s.watchCount = 0
}
