package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/skillbridge-labs/fedsql/pkg/adapters/duckdb"
	_ "github.com/skillbridge-labs/fedsql/pkg/adapters/sqlite"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err) // explicit missing file is an error

	cfg, err = LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRows, cfg.Pipeline.MaxRows)
	assert.Equal(t, DefaultBatchMaxRows, cfg.Pipeline.BatchMaxRows)
	assert.True(t, cfg.Pipeline.Fallback)
	assert.Equal(t, "duckdb", cfg.Sources[SourceCourse].Type)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, DefaultRequestTimeout, cfg.Server.RequestTimeout)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fedsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  course:
    type: sqlite
    path: /data/course.db
  job:
    type: duckdb
    path: /data/job.db
pipeline:
  max_rows: 42
server:
  request_timeout: 30s
`), 0o644))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Sources[SourceCourse].Type)
	assert.Equal(t, "/data/course.db", cfg.Sources[SourceCourse].Path)
	assert.Equal(t, 42, cfg.Pipeline.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	// Untouched keys keep defaults.
	assert.Equal(t, DefaultBatchMaxRows, cfg.Pipeline.BatchMaxRows)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FEDSQL_LLM__API_KEY", "test-key")
	t.Setenv("FEDSQL_PIPELINE__MAX_ROWS", "7")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Pipeline.MaxRows)
}

func TestLoadConfigFlagOverride(t *testing.T) {
	t.Setenv("FEDSQL_PIPELINE__MAX_ROWS", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-rows", 0, "")
	flags.String("api-key", "", "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--max-rows=9", "--verbose"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Pipeline.MaxRows) // flag beats env
	assert.True(t, cfg.Verbose)
	assert.Empty(t, cfg.LLM.APIKey) // unchanged flags are skipped
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Sources = map[string]SourceConfig{SourceCourse: {Type: "duckdb"}}
	assert.ErrorContains(t, bad.Validate(), `missing required source "job"`)

	bad = *cfg
	bad.Sources = map[string]SourceConfig{
		SourceCourse: {Type: "oracle"},
		SourceJob:    {Type: "duckdb"},
	}
	assert.ErrorContains(t, bad.Validate(), "unknown adapter type")

	bad = *cfg
	bad.Pipeline.MaxRows = 0
	assert.ErrorContains(t, bad.Validate(), "max_rows")
}

func TestSchemaSummaryDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Contains(t, cfg.SchemaSummary(SourceCourse), "courses (")
	assert.Contains(t, cfg.SchemaSummary(SourceJob), "jobs (")
	assert.Empty(t, cfg.SchemaSummary("unknown"))

	custom := cfg.Sources[SourceCourse]
	custom.SchemaSummary = "my summary"
	cfg.Sources[SourceCourse] = custom
	assert.Equal(t, "my summary", cfg.SchemaSummary(SourceCourse))
}
