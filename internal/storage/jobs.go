package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"esgdata/internal/etl"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("import job not found")

// ImportStore implements persistence for import jobs and run logs.
type ImportStore struct {
	db *DB
}

// NewImportStore creates a new ImportStore.
func NewImportStore(db *DB) *ImportStore {
	return &ImportStore{db: db}
}

const jobColumns = `id, name, source_type, source_config, transforms,
	sync_mode, dedupe_key, trigger_type, trigger_config, enabled,
	last_run_at, last_status, last_error, created_at, updated_at`

// ── Job CRUD ───────────────────────────────────────────────

func (s *ImportStore) CreateJob(job *etl.SyncJob) error {
	now := time.Now().UTC()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.SyncMode == "" {
		job.SyncMode = etl.SyncAppend
	}
	if job.TriggerType == "" {
		job.TriggerType = "manual"
	}

	srcCfg, transforms, err := encodeJob(job)
	if err != nil {
		return err
	}

	_, err = s.db.conn.Exec(
		`INSERT INTO import_jobs (id, name, source_type, source_config, transforms,
		 sync_mode, dedupe_key, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, srcCfg, transforms,
		job.SyncMode, job.DedupeKey,
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *ImportStore) GetJob(id string) (*etl.SyncJob, error) {
	row := s.db.conn.QueryRow(`SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *ImportStore) UpdateJob(job *etl.SyncJob) error {
	job.UpdatedAt = time.Now().UTC()
	srcCfg, transforms, err := encodeJob(job)
	if err != nil {
		return err
	}

	res, err := s.db.conn.Exec(
		`UPDATE import_jobs SET name=?, source_type=?, source_config=?, transforms=?,
		 sync_mode=?, dedupe_key=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, srcCfg, transforms,
		job.SyncMode, job.DedupeKey,
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.UpdatedAt, job.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res, job.ID)
}

func (s *ImportStore) UpdateJobStatus(id, status, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.conn.Exec(
		`UPDATE import_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return err
}

func (s *ImportStore) DeleteJob(id string) error {
	// run logs go with the job (ON DELETE CASCADE)
	res, err := s.db.conn.Exec(`DELETE FROM import_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, id)
}

func (s *ImportStore) ListJobs() ([]etl.SyncJob, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM import_jobs ORDER BY created_at ASC`)
}

// ListEnabledTriggeredJobs returns enabled jobs with a schedule or file-watch trigger.
func (s *ImportStore) ListEnabledTriggeredJobs() ([]etl.SyncJob, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM import_jobs
		WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		ORDER BY created_at ASC`)
}

func (s *ImportStore) queryJobs(query string, args ...any) ([]etl.SyncJob, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []etl.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*etl.SyncJob, error) {
	job := &etl.SyncJob{}
	var srcCfg, transforms string
	var lastRun sql.NullTime
	if err := row.Scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg, &transforms,
		&job.SyncMode, &job.DedupeKey,
		&job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&lastRun, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		job.LastRunAt = lastRun.Time
	}
	if err := json.Unmarshal([]byte(srcCfg), &job.SourceCfg); err != nil {
		return nil, fmt.Errorf("job %s source config: %w", job.ID, err)
	}
	if err := json.Unmarshal([]byte(transforms), &job.Transforms); err != nil {
		return nil, fmt.Errorf("job %s transforms: %w", job.ID, err)
	}
	return job, nil
}

func encodeJob(job *etl.SyncJob) (string, string, error) {
	srcCfg, err := json.Marshal(job.SourceCfg)
	if err != nil {
		return "", "", fmt.Errorf("encode source config: %w", err)
	}
	transforms, err := json.Marshal(job.Transforms)
	if err != nil {
		return "", "", fmt.Errorf("encode transforms: %w", err)
	}
	return string(srcCfg), string(transforms), nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ImportStore) CreateRunLog(log *etl.SyncRunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO import_run_logs (id, job_id, started_at, finished_at, status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.Status, log.RowsRead, log.RowsWritten, log.Error,
	)
	return err
}

func (s *ImportStore) ListRunLogs(jobID string, limit int) ([]etl.SyncRunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, rows_written, error
		 FROM import_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.SyncRunLog
	for rows.Next() {
		var l etl.SyncRunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsWritten, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
