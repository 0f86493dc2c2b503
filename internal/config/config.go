package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"esgdata/internal/domain"
)

// Config holds all esgdata configuration.
type Config struct {
	Mongo   MongoConfig   `yaml:"mongo"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`

	// Staging databases the "database" import source may read from.
	Connections []ConnectionConfig `yaml:"connections"`

	// values from the .env file next to the config file
	dotEnv map[string]string
}

// MongoConfig configures the reporting document store.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Timeout    string `yaml:"timeout"`
}

// StorageConfig configures the local job store.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// ConnectionConfig describes one staging database.
// The password is never stored in the file; PasswordEnv names the variable holding it.
type ConnectionConfig struct {
	Name        string            `yaml:"name"`
	Driver      string            `yaml:"driver"` // mysql, postgres, sqlite
	Host        string            `yaml:"host"`   // hostname or file path (sqlite)
	Port        int               `yaml:"port"`
	Database    string            `yaml:"database"`
	Username    string            `yaml:"username"`
	SSLMode     string            `yaml:"ssl_mode"`
	PasswordEnv string            `yaml:"password_env"`
	Extra       map[string]string `yaml:"extra"`
}

// DefaultConfig returns a configuration usable against a local MongoDB.
func DefaultConfig() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "esg",
			Collection: domain.ReportingCollection,
			Timeout:    "30s",
		},
		Storage: StorageConfig{
			DBPath: "esgdata.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path. A missing file yields the defaults.
// Environment overrides, from the process or a .env file beside the config,
// are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.dotEnv = readDotEnv(path)
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// readDotEnv reads the .env file in the config file's directory.
// A missing or unreadable file yields nothing.
func readDotEnv(configPath string) map[string]string {
	vals, err := godotenv.Read(filepath.Join(filepath.Dir(configPath), ".env"))
	if err != nil {
		return nil
	}
	return vals
}

// getenv prefers the process environment over the .env file.
func (c *Config) getenv(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return c.dotEnv[key]
}

func (c *Config) applyEnvOverrides() {
	if v := c.getenv("ESGDATA_MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := c.getenv("ESGDATA_MONGO_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
	if v := c.getenv("ESGDATA_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := c.getenv("ESGDATA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = domain.ReportingCollection
	}
	if _, err := time.ParseDuration(c.Mongo.Timeout); c.Mongo.Timeout != "" && err != nil {
		return fmt.Errorf("invalid mongo.timeout %q: %w", c.Mongo.Timeout, err)
	}
	seen := make(map[string]bool)
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection without name")
		}
		if seen[conn.Name] {
			return fmt.Errorf("duplicate connection %q", conn.Name)
		}
		seen[conn.Name] = true
		switch domain.DatabaseDriver(conn.Driver) {
		case domain.DatabaseDriverMySQL, domain.DatabaseDriverPostgres, domain.DatabaseDriverSQLite:
		default:
			return fmt.Errorf("connection %q: unsupported driver %q", conn.Name, conn.Driver)
		}
	}
	return nil
}

// GetMongoTimeout returns the per-operation timeout for the document store.
func (c *Config) GetMongoTimeout() time.Duration {
	d, err := time.ParseDuration(c.Mongo.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Connection resolves a named staging connection and its password.
func (c *Config) Connection(name string) (*domain.DatabaseConnection, string, error) {
	for _, cc := range c.Connections {
		if cc.Name != name {
			continue
		}
		conn := &domain.DatabaseConnection{
			Name:     cc.Name,
			Driver:   domain.DatabaseDriver(cc.Driver),
			Host:     cc.Host,
			Port:     cc.Port,
			Database: cc.Database,
			Username: cc.Username,
			SSLMode:  cc.SSLMode,
			Extra:    cc.Extra,
		}
		var password string
		if cc.PasswordEnv != "" {
			password = c.getenv(cc.PasswordEnv)
		}
		return conn, password, nil
	}
	return nil, "", fmt.Errorf("unknown connection: %q", name)
}
