package dbclient

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgdata/internal/domain"
)

func seedStaging(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staging.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE feed (isin TEXT PRIMARY KEY, esg INTEGER, sdg TEXT)`,
		`INSERT INTO feed VALUES ('DE0005190003', 55, '[ 0 - 10% ['), ('US0378331005', 61, 'None'), ('FR0000120271', 40, '] 10 - 20% [')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func openStaging(t *testing.T) Connector {
	t.Helper()
	conn, err := NewConnector(&domain.DatabaseConnection{Name: "staging", Driver: domain.DatabaseDriverSQLite, Host: seedStaging(t)}, "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSQLiteConnector_CursorPaging(t *testing.T) {
	conn := openStaging(t)
	ctx := context.Background()
	require.NoError(t, conn.Ping(ctx))

	cur, err := conn.Query(ctx, "SELECT isin, esg, sdg FROM feed ORDER BY isin")
	require.NoError(t, err)
	defer cur.Close()

	names := make([]string, 0, 3)
	for _, c := range cur.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"isin", "esg", "sdg"}, names)

	page, err := cur.Next(2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.True(t, page.More)
	assert.Equal(t, "DE0005190003", page.Rows[0]["isin"])
	assert.EqualValues(t, 55, page.Rows[0]["esg"])

	page, err = cur.Next(2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.False(t, page.More)
	assert.Equal(t, 3, page.Fetched)
	assert.Equal(t, "US0378331005", page.Rows[0]["isin"])

	_, err = cur.Next(2)
	assert.ErrorIs(t, err, ErrCursorClosed)
	assert.NoError(t, cur.Close())
}

func TestSQLiteConnector_CancelledContext(t *testing.T) {
	conn := openStaging(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Query(ctx, "SELECT * FROM feed")
	assert.Error(t, err)
}

func TestSQLiteConnector_RejectsWrites(t *testing.T) {
	conn := openStaging(t)

	_, err := conn.Query(context.Background(), "DELETE FROM feed")
	assert.ErrorIs(t, err, ErrWriteQuery)
}

func TestSQLiteConnector_OpensReadOnly(t *testing.T) {
	conn := openStaging(t)

	// PRAGMA passes the keyword check, the file mode still refuses the write.
	cur, err := conn.Query(context.Background(), "PRAGMA user_version = 7")
	if err == nil {
		_, err = cur.Next(1)
		cur.Close()
	}
	assert.Error(t, err)
}

func TestSQLiteConnector_Tables(t *testing.T) {
	conn := openStaging(t)

	tables, err := conn.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "feed", tables[0].Name)
	assert.Equal(t, []ColumnInfo{
		{Name: "isin", Type: "text"},
		{Name: "esg", Type: "integer"},
		{Name: "sdg", Type: "text"},
	}, tables[0].Columns)
}

func TestNewConnector_UnsupportedDriver(t *testing.T) {
	_, err := NewConnector(&domain.DatabaseConnection{Driver: "oracle"}, "")
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Host: "db", Database: "feed", Username: "loader",
		Extra: map[string]string{"application_name": "esgdata", "options": "-c search_path=vendor"},
	}
	assert.Equal(t,
		`host=db port=5432 user=loader password='p w\'d' dbname=feed sslmode=disable connect_timeout=10 application_name=esgdata options='-c search_path=vendor'`,
		postgresDSN(conn, "p w'd"))
}

func TestMySQLConfig(t *testing.T) {
	conn := &domain.DatabaseConnection{
		Host: "db", Database: "feed", Username: "loader", SSLMode: "require",
		Extra: map[string]string{"sql_mode": "ANSI"},
	}
	cfg, err := mysqlConfig(conn, "pw")
	require.NoError(t, err)

	parsed, err := mysql.ParseDSN(cfg.FormatDSN())
	require.NoError(t, err)
	assert.Equal(t, "loader", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "feed", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "true", parsed.TLSConfig)
	assert.Equal(t, "ANSI", parsed.Params["sql_mode"])
}

func TestIsReadQuery(t *testing.T) {
	assert.True(t, isReadQuery("  select * from feed"))
	assert.True(t, isReadQuery("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, isReadQuery("-- latest load\nSELECT 1"))
	assert.True(t, isReadQuery("SELECT\n1"))
	assert.False(t, isReadQuery("UPDATE feed SET esg = 0"))
	assert.False(t, isReadQuery("-- only a comment"))
}
