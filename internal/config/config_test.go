package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "esg", cfg.Mongo.Database)
	assert.Equal(t, "sustainability_reporting", cfg.Mongo.Collection)
	assert.Equal(t, 30*time.Second, cfg.GetMongoTimeout())
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esgdata.yaml")
	content := `
mongo:
  uri: mongodb://db:27017
  database: funds
  timeout: 5s
logging:
  level: debug
connections:
  - name: staging
    driver: postgres
    host: pg
    database: feed
    username: loader
    password_env: STAGING_PW
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("STAGING_PW", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "funds", cfg.Mongo.Database)
	assert.Equal(t, 5*time.Second, cfg.GetMongoTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)

	conn, pw, err := cfg.Connection("staging")
	require.NoError(t, err)
	assert.Equal(t, "pg", conn.Host)
	assert.Equal(t, "s3cret", pw)

	_, _, err = cfg.Connection("nope")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ESGDATA_MONGO_URI", "mongodb://override:27017")
	t.Setenv("ESGDATA_DB_PATH", "/tmp/jobs.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", cfg.Mongo.URI)
	assert.Equal(t, "/tmp/jobs.db", cfg.Storage.DBPath)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esgdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections:\n  - name: staging\n    driver: sqlite\n    host: feed.db\n    password_env: ESGDATA_TEST_DOTENV_PW\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("ESGDATA_MONGO_DATABASE=fromdotenv\nESGDATA_LOG_LEVEL=warn\nESGDATA_TEST_DOTENV_PW=hunter2\n"), 0644))
	t.Setenv("ESGDATA_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Mongo.Database)
	// the process environment wins
	assert.Equal(t, "error", cfg.Logging.Level)

	_, pw, err := cfg.Connection("staging")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mongo: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connections = []ConnectionConfig{{Name: "x", Driver: "oracle"}}
	assert.Error(t, cfg.Validate())

	cfg.Connections = []ConnectionConfig{{Name: "a", Driver: "sqlite"}, {Name: "a", Driver: "mysql"}}
	assert.Error(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Mongo.Database = "roundtrip"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Mongo.Database)
}
