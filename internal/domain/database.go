package domain

// DatabaseDriver represents the type of staging database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConnection holds the metadata for connecting to a staging database
// that carries a vendor datafeed. The password is resolved separately.
type DatabaseConnection struct {
	Name     string            `json:"name"`
	Driver   DatabaseDriver    `json:"driver"`
	Host     string            `json:"host"`     // hostname or file path (sqlite)
	Port     int               `json:"port"`     // 0 for sqlite
	Database string            `json:"database"` // db name or empty for sqlite
	Username string            `json:"username"`
	SSLMode  string            `json:"sslMode"`
	Extra    map[string]string `json:"extra,omitempty"` // driver-specific DSN parameters
}
