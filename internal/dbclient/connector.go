package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"esgdata/internal/domain"
)

var (
	// ErrWriteQuery is returned when a non-read statement reaches a staging connector.
	ErrWriteQuery = errors.New("staging connections are read-only")
	// ErrCursorClosed is returned by Next once the cursor is exhausted or closed.
	ErrCursorClosed = errors.New("cursor closed")
)

// ColumnInfo describes a result or table column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // database type name, empty for expressions
}

// TableInfo describes a staging table.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// Connector reads a vendor feed from a staging database. It never writes.
type Connector interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Query runs a read query in a read-only transaction bound to ctx.
	// The caller must Close the cursor.
	Query(ctx context.Context, query string) (*Cursor, error)

	// Tables lists the tables and columns of the current schema.
	Tables(ctx context.Context) ([]TableInfo, error)

	Close() error
}

// NewConnector opens a Connector for the given staging connection.
func NewConnector(conn *domain.DatabaseConnection, password string) (Connector, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		db, err := sql.Open("sqlite", sqliteDSN(conn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return newStagingDB(db, conn.Driver), nil

	case domain.DatabaseDriverMySQL:
		cfg, err := mysqlConfig(conn, password)
		if err != nil {
			return nil, fmt.Errorf("mysql config: %w", err)
		}
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("mysql config: %w", err)
		}
		return newStagingDB(sql.OpenDB(connector), conn.Driver), nil

	case domain.DatabaseDriverPostgres:
		connector, err := pq.NewConnector(postgresDSN(conn, password))
		if err != nil {
			return nil, fmt.Errorf("postgres dsn: %w", err)
		}
		return newStagingDB(sql.OpenDB(connector), conn.Driver), nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
