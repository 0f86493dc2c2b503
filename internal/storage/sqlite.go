package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding import jobs and their run history.
type DB struct {
	conn *sql.DB
}

// schema holds one entry per schema version. Entries are never edited
// once released; changes go in a new entry.
var schema = []string{
	`CREATE TABLE import_jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_config TEXT NOT NULL DEFAULT '{}',
		transforms TEXT NOT NULL DEFAULT '[]',
		sync_mode TEXT NOT NULL DEFAULT 'append',
		dedupe_key TEXT NOT NULL DEFAULT '',
		trigger_type TEXT NOT NULL DEFAULT 'manual',
		trigger_config TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		last_run_at DATETIME,
		last_status TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE import_run_logs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES import_jobs(id) ON DELETE CASCADE,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		rows_read INTEGER NOT NULL DEFAULT 0,
		rows_written INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_import_run_logs_job ON import_run_logs(job_id, started_at)`,

	`CREATE INDEX idx_import_jobs_trigger ON import_jobs(enabled, trigger_type)`,
}

// New opens (or creates) the SQLite file at dbPath and brings its schema
// up to date.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	pragmas := url.Values{"_pragma": {"journal_mode(WAL)", "busy_timeout(5000)", "foreign_keys(1)"}}
	conn, err := sql.Open("sqlite", "file:"+dbPath+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Version returns the applied schema version.
func (db *DB) Version() (int, error) {
	var v int
	err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

func (db *DB) migrate() error {
	current, err := db.Version()
	if err != nil {
		return err
	}
	if current > len(schema) {
		return fmt.Errorf("database schema v%d is newer than this build (v%d)", current, len(schema))
	}

	for v := current + 1; v <= len(schema); v++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(schema[v-1]); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema v%d: %w", v, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v)); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema v%d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
