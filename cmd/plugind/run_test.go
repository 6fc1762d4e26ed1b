package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/internal/account"
	"github.com/bjaus/plugin/store/sqlite"
)

const seedNDJSON = `{"logical_name": "account", "id": "a1", "attributes": {"name": "Contoso"}}
{"logical_name": "account", "id": "a2", "attributes": {"name": "Fabrikam"}}
`

const eventsNDJSON = `{"stage": "PostOperation", "message": "Update", "entity": "account", "initiating_user_id": "u1", "input_parameters": {"Target": {"logical_name": "account", "id": "a1", "attributes": {}}}, "post_images": {"PostImage": {"logical_name": "account", "id": "a1", "attributes": {"new_companysize": 858830002, "new_previousperformancerate": 100, "new_currentperformancerate": 80}}}}

{"stage": "PreOperation", "message": "Create", "entity": "lead"}
{"stage": "PostOperation", "message": "Update", "entity": "account", "initiating_user_id": "u1", "input_parameters": {"Target": {"logical_name": "account", "id": "a2", "attributes": {}}}, "post_images": {"PostImage": {"logical_name": "account", "id": "a2", "attributes": {"new_companysize": 858830000, "new_previousperformancerate": 10, "new_currentperformancerate": 12}}}}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, "plugind", cfg.Name)
		assert.Equal(t, "plugind.db", cfg.DBPath)
		assert.Equal(t, "-", cfg.InputPath)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("environment and argument", func(t *testing.T) {
		cfg, err := ParseConfig([]string{"events.ndjson"}, map[string]string{
			"PLUGIN_DB_PATH":   "/tmp/x.db",
			"PLUGIN_FAIL_FAST": "true",
			"PLUGIN_LOG_LEVEL": "debug",
			"PLUGIN_INPUT":     "ignored.ndjson",
		})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x.db", cfg.DBPath)
		assert.True(t, cfg.FailFast)
		assert.Equal(t, "events.ndjson", cfg.InputPath)
	})

	t.Run("rejects bad values", func(t *testing.T) {
		_, err := ParseConfig(nil, map[string]string{"PLUGIN_LOG_LEVEL": "loud"})
		assert.Error(t, err)

		_, err = ParseConfig(nil, map[string]string{"PLUGIN_LOG_FORMAT": "xml"})
		assert.Error(t, err)

		_, err = ParseConfig(nil, map[string]string{"PLUGIN_FAIL_FAST": "maybe"})
		assert.Error(t, err)

		_, err = ParseConfig([]string{"a", "b"}, map[string]string{})
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "plugind.db")
	cfg := Config{
		Name:      "plugind",
		DBPath:    dbPath,
		SeedPath:  writeFile(t, dir, "seed.ndjson", seedNDJSON),
		InputPath: "-",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	var logs bytes.Buffer
	sum, err := Run(context.Background(), cfg, strings.NewReader(eventsNDJSON), &logs)
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 3}, sum)
	assert.Contains(t, logs.String(), `"msg":"seeded records"`)

	assertStatus(t, dbPath, "a1", account.PerformanceDeclined)
	assertStatus(t, dbPath, "a2", account.PerformanceImproving)
}

func TestRunWithManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := writeFile(t, dir, "plugin.hcl", `
plugin = "AccountPerformanceStatus"

step "performance" {
  stage   = "PostOperation"
  message = "Update"
  entity  = "account"
  handler = "account.performance_status"
}
`)
	cfg := Config{
		Name:         "plugind",
		DBPath:       filepath.Join(dir, "plugind.db"),
		ManifestPath: manifestPath,
		SeedPath:     writeFile(t, dir, "seed.ndjson", seedNDJSON),
		InputPath:    writeFile(t, dir, "events.ndjson", eventsNDJSON),
		LogLevel:     "debug",
		LogFormat:    "text",
	}

	var logs bytes.Buffer
	_, err := Run(context.Background(), cfg, nil, &logs)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Entered AccountPerformanceStatus.Execute()")
}

func TestRunFailures(t *testing.T) {
	dir := t.TempDir()
	input := `{"stage": "PostOperation", "message": "Update", "entity": "account"}
{"nonsense": true}
{"stage": "PreOperation", "message": "Create", "entity": "lead"}
`
	cfg := Config{
		Name:      "plugind",
		DBPath:    filepath.Join(dir, "plugind.db"),
		LogLevel:  "error",
		LogFormat: "text",
	}

	t.Run("continues by default", func(t *testing.T) {
		sum, err := Run(context.Background(), cfg, strings.NewReader(input), &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorIs(t, err, plugin.ErrMissingTarget)
		assert.Equal(t, Summary{Processed: 3, Failed: 2}, sum)
	})

	t.Run("fail fast stops at the first failure", func(t *testing.T) {
		cfg := cfg
		cfg.FailFast = true
		sum, err := Run(context.Background(), cfg, strings.NewReader(input), &bytes.Buffer{})
		require.Error(t, err)
		assert.Equal(t, Summary{Processed: 1, Failed: 1}, sum)
	})

	t.Run("bad manifest", func(t *testing.T) {
		cfg := cfg
		cfg.ManifestPath = writeFile(t, dir, "bad.hcl", `step "x" {
  stage   = "PostOperation"
  handler = "unknown"
}`)
		_, err := Run(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
		assert.ErrorContains(t, err, `unknown handler "unknown"`)
	})
}

func assertStatus(t *testing.T, dbPath, id string, want account.PerformanceStatus) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.OpenSession(ctx, "reader")
	require.NoError(t, err)
	defer sess.Close()

	rec, err := sess.Retrieve(ctx, plugin.Reference{LogicalName: account.LogicalName, ID: id}, "new_performancestatus")
	require.NoError(t, err)
	assert.Equal(t, float64(want), rec.Attributes["new_performancestatus"])
}
