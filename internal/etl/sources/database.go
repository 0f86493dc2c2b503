package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"esgdata/internal/dbclient"
	"esgdata/internal/domain"
	"esgdata/internal/etl"
)

// ── Database Source ────────────────────────────────────────
// Reads a vendor feed from a staging database through the read-only
// dbclient connectors.

const defaultFetchSize = 500

// ConnectionResolver looks up a named staging connection and its password.
// config.Config.Connection satisfies it.
type ConnectionResolver func(name string) (*domain.DatabaseConnection, string, error)

var resolveConnection ConnectionResolver

// SetConnectionResolver is called at startup once the config is loaded.
func SetConnectionResolver(r ConnectionResolver) { resolveConnection = r }

type databaseSource struct{}

func init() { etl.RegisterSource(&databaseSource{}) }

func (s *databaseSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "database",
		Label: "Database Query",
		ConfigFields: []etl.ConfigField{
			{Key: "connection", Label: "Connection", Type: "string", Required: true, Help: "Name of a connection from the config file"},
			{Key: "query", Label: "Query", Type: "string", Required: true, Help: "Read-only SELECT over the staging tables"},
			{Key: "fetchSize", Label: "Fetch Size", Type: "number", Required: false, Default: "500", Help: "Rows per page"},
		},
	}
}

// openConnector resolves the configured connection and returns a connector
// together with the query to run.
func openConnector(cfg etl.SourceConfig) (dbclient.Connector, string, error) {
	name := cfg.String("connection", "")
	query := cfg.String("query", "")
	if name == "" || query == "" {
		return nil, "", fmt.Errorf("connection and query are required")
	}
	if resolveConnection == nil {
		return nil, "", fmt.Errorf("connection resolver not initialized")
	}
	conn, password, err := resolveConnection(name)
	if err != nil {
		return nil, "", err
	}
	connector, err := dbclient.NewConnector(conn, password)
	if err != nil {
		return nil, "", err
	}
	return connector, query, nil
}

func fetchSize(cfg etl.SourceConfig) int {
	n, err := strconv.Atoi(cfg.String("fetchSize", ""))
	if err != nil || n <= 0 {
		return defaultFetchSize
	}
	return n
}

func (s *databaseSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	connector, query, err := openConnector(cfg)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	cur, err := connector.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	cols := cur.Columns()
	schema := &etl.Schema{Fields: make([]etl.Field, len(cols))}
	for i, col := range cols {
		schema.Fields[i] = etl.Field{Name: col.Name, Type: fieldType(col.Type)}
	}
	return schema, nil
}

func (s *databaseSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		connector, query, err := openConnector(cfg)
		if err != nil {
			errCh <- err
			return
		}
		defer connector.Close()

		cur, err := connector.Query(ctx, query)
		if err != nil {
			errCh <- fmt.Errorf("query: %w", err)
			return
		}
		defer cur.Close()

		size := fetchSize(cfg)
		for {
			page, err := cur.Next(size)
			if err != nil {
				errCh <- fmt.Errorf("fetch: %w", err)
				return
			}
			for _, row := range page.Rows {
				select {
				case out <- etl.Record{Data: row}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if !page.More {
				return
			}
		}
	}()

	return out, errCh
}

// fieldType maps a database column type onto a schema field type.
func fieldType(dbType string) string {
	t := strings.ToLower(dbType)
	switch {
	case strings.Contains(t, "int"), strings.Contains(t, "real"), strings.Contains(t, "float"), strings.Contains(t, "double"),
		strings.Contains(t, "numeric"), strings.Contains(t, "decimal"):
		return "number"
	case strings.Contains(t, "bool"):
		return "boolean"
	case strings.Contains(t, "date"), strings.Contains(t, "time"):
		return "datetime"
	default:
		return "text"
	}
}
