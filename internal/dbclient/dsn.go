package dbclient

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"esgdata/internal/domain"
)

const dialTimeout = 10 * time.Second

// sqliteDSN opens the staging file read-only; it must already exist.
func sqliteDSN(conn *domain.DatabaseConnection) string {
	return "file:" + conn.Host + "?mode=ro&_pragma=busy_timeout(5000)"
}

// mysqlConfig builds the driver config for a staging MySQL database.
// Extra entries become connection parameters (session variables).
func mysqlConfig(conn *domain.DatabaseConnection, password string) (*mysql.Config, error) {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, port)
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = dialTimeout
	if err := cfg.Apply(mysql.Charset("utf8mb4", "utf8mb4_unicode_ci")); err != nil {
		return nil, err
	}
	if conn.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	for k, v := range conn.Extra {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[k] = v
	}
	return cfg, nil
}

// postgresDSN builds a key=value connection string. Extra entries are
// appended in key order.
func postgresDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	params := [][2]string{
		{"host", conn.Host},
		{"port", fmt.Sprint(port)},
		{"user", conn.Username},
		{"password", password},
		{"dbname", conn.Database},
		{"sslmode", sslMode},
		{"connect_timeout", fmt.Sprint(int(dialTimeout.Seconds()))},
	}
	keys := make([]string, 0, len(conn.Extra))
	for k := range conn.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, [2]string{k, conn.Extra[k]})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+quotePQ(p[1]))
	}
	return strings.Join(parts, " ")
}

// quotePQ quotes a libpq connection value when it needs it.
func quotePQ(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
