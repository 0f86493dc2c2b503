package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and an isolated config and job store.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "esgdata.yaml")
	cfg := "storage:\n  db_path: " + filepath.Join(dir, "jobs.db") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "esgdata", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"interval"},
		{"pipeline", "deref"},
		{"pipeline", "resolve"},
		{"import"},
		{"jobs", "list"},
		{"jobs", "create"},
		{"jobs", "delete"},
		{"jobs", "logs"},
		{"serve"},
		{"mcp"},
		{"config", "init"},
		{"config", "show"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "esgdata.yaml", configFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "interval", "None")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestIntervalCommand(t *testing.T) {
	out, err := run(t, "interval", "[ 90 - 100% ]", "None")
	require.NoError(t, err)
	assert.Contains(t, out, "mean=0.950")
	assert.Contains(t, out, "None")

	out, err = run(t, "--format", "json", "interval", "] 0 - 10% [")
	require.NoError(t, err)
	var resp struct {
		Status string
		Data   []intervalResult
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 10, resp.Data[0].Percent.Upper)

	_, err = run(t, "interval", "[ 90 % ]")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestPipelineCommands(t *testing.T) {
	out, err := run(t, "pipeline", "resolve", "company", "companies")
	require.NoError(t, err)
	var stages []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stages))
	require.Len(t, stages, 3)
	assert.Contains(t, stages[0], "$lookup")

	out, err = run(t, "pipeline", "resolve", "company", "companies", "--dynamic")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &stages))
	assert.Len(t, stages, 4)

	out, err = run(t, "pipeline", "deref", "company")
	require.NoError(t, err)
	assert.Contains(t, out, `"$company._ref"`)
}

func TestJobsCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "esgdata.yaml")
	cfg := "storage:\n  db_path: " + filepath.Join(dir, "jobs.db") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	exec := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--config", cfgPath, "--format", "json"}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := exec("jobs", "create", "--name", "feed", "--source", "csv_file",
		"--config-json", `{"filePath":"/data/feed.csv"}`)
	require.NoError(t, err)
	var created struct {
		Data struct{ ID, Name string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.NotEmpty(t, created.Data.ID)

	out, err = exec("jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, created.Data.ID)

	out, err = exec("jobs", "logs", created.Data.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)

	_, err = exec("jobs", "delete", created.Data.ID)
	require.NoError(t, err)

	_, err = exec("jobs", "delete", created.Data.ID)
	assert.Error(t, err)

	_, err = exec("jobs", "create", "--name", "bad", "--source", "nope")
	assert.Error(t, err)
}

func TestImportRequiresOneOf(t *testing.T) {
	_, err := run(t, "import")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, "import", "--job", "x", "--source", "csv_file")
	require.Error(t, err)
}

func TestJobFlagsInput(t *testing.T) {
	f := JobFlags{
		Source:         "csv_file",
		ConfigJSON:     `{"filePath":"feed.csv"}`,
		TransformsJSON: `[{"type":"nest","config":{"flat":["PAI"]}}]`,
		Mode:           "replace",
	}
	in, err := f.input()
	require.NoError(t, err)
	assert.Equal(t, "feed.csv", in.SourceConfig["filePath"])
	require.Len(t, in.Transforms, 1)
	assert.Equal(t, "nest", in.Transforms[0].Type)

	f.ConfigJSON = "{"
	_, err = f.input()
	assert.ErrorContains(t, err, "--config-json")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "esgdata.yaml")
	exec := func(args ...string) error {
		cmd := NewRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--config", path}, args...))
		return cmd.Execute()
	}

	require.NoError(t, exec("config", "init"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mongo:")
	assert.Contains(t, string(data), "db_path:")

	err = exec("config", "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	require.NoError(t, exec("config", "init", "--force"))
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "jobs.db")
	assert.Contains(t, out, "level: error")
}
