package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"esgdata/internal/domain"
)

const pingTimeout = 10 * time.Second

// stagingDB is the database/sql backed Connector shared by every driver.
type stagingDB struct {
	db     *sql.DB
	driver domain.DatabaseDriver
}

func newStagingDB(db *sql.DB, driver domain.DatabaseDriver) *stagingDB {
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &stagingDB{db: db, driver: driver}
}

func (s *stagingDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *stagingDB) Query(ctx context.Context, query string) (*Cursor, error) {
	if !isReadQuery(query) {
		return nil, ErrWriteQuery
	}

	// The transaction lives as long as ctx, so cancelling the import
	// aborts an in-flight fetch.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only: %w", err)
	}
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		tx.Rollback()
		return nil, fmt.Errorf("column types: %w", err)
	}

	columns := make([]ColumnInfo, len(types))
	for i, t := range types {
		columns[i] = ColumnInfo{Name: t.Name(), Type: strings.ToLower(t.DatabaseTypeName())}
	}
	return &Cursor{tx: tx, rows: rows, columns: columns}, nil
}

func (s *stagingDB) Tables(ctx context.Context) ([]TableInfo, error) {
	var query string
	switch s.driver {
	case domain.DatabaseDriverSQLite:
		query = `SELECT m.name, p.name, p.type
			FROM sqlite_master m JOIN pragma_table_info(m.name) p
			WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
			ORDER BY m.name, p.cid`
	case domain.DatabaseDriverMySQL:
		query = `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE()
			ORDER BY TABLE_NAME, ORDINAL_POSITION`
	case domain.DatabaseDriverPostgres:
		query = `SELECT table_name, column_name, data_type
			FROM information_schema.columns
			WHERE table_schema = current_schema()
			ORDER BY table_name, ordinal_position`
	default:
		return nil, fmt.Errorf("unsupported driver: %s", s.driver)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var table, name, typ string
		if err := rows.Scan(&table, &name, &typ); err != nil {
			return nil, err
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, TableInfo{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, ColumnInfo{Name: name, Type: strings.ToLower(typ)})
	}
	return tables, rows.Err()
}

func (s *stagingDB) Close() error {
	return s.db.Close()
}

// isReadQuery reports whether the statement starts with a read keyword.
func isReadQuery(query string) bool {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "--") {
		_, rest, ok := strings.Cut(q, "\n")
		if !ok {
			return false
		}
		q = strings.TrimSpace(rest)
	}
	end := strings.IndexFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z')
	})
	if end < 0 {
		end = len(q)
	}
	switch strings.ToUpper(q[:end]) {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "VALUES", "TABLE":
		return true
	}
	return false
}
