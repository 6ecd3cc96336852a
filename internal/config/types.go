// Package config provides configuration management for FedSQL.
//
// Configuration is layered the same way everywhere: built-in defaults, then
// fedsql.yaml, then FEDSQL_ environment variables, then CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

// SourceConfig describes one federated source.
type SourceConfig struct {
	Type     string `koanf:"type"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// SchemaSummary is the fixed text handed to the planner model. It is
	// read-only configuration loaded once at startup.
	SchemaSummary string `koanf:"schema_summary"`
}

// AdapterConfig converts a source entry to the adapter SPI's config.
func (s SourceConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     s.Type,
		Path:     s.Path,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		Username: s.Username,
		Password: s.Password,
		Schema:   s.Schema,
	}
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
}

// PipelineConfig holds pipeline tuning knobs.
type PipelineConfig struct {
	MaxRows      int    `koanf:"max_rows"`
	BatchMaxRows int    `koanf:"batch_max_rows"`
	Fallback     bool   `koanf:"fallback"`
	FallbackRole string `koanf:"fallback_role"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Config holds all FedSQL configuration options.
type Config struct {
	Verbose  bool                    `koanf:"verbose"`
	Output   string                  `koanf:"output"`
	Sources  map[string]SourceConfig `koanf:"sources"`
	LLM      LLMConfig               `koanf:"llm"`
	Pipeline PipelineConfig          `koanf:"pipeline"`
	Server   ServerConfig            `koanf:"server"`
}

// Source names every deployment must configure.
const (
	SourceCourse = "course"
	SourceJob    = "job"
)

// Default configuration values.
const (
	DefaultSourceType     = "duckdb"
	DefaultProvider       = "gemini"
	DefaultModel          = "gemini-2.0-flash"
	DefaultMaxRows        = 100
	DefaultBatchMaxRows   = 50
	DefaultFallbackRole   = "Data Scientist"
	DefaultServerHost     = "127.0.0.1"
	DefaultServerPort     = 8080
	DefaultRequestTimeout = 60 * time.Second
	DefaultOutput         = "table"
)

// DefaultCourseSchemaSummary describes the course source the way the
// planner model sees it.
const DefaultCourseSchemaSummary = `course database - INDEPENDENT DATABASE
Tables:
  courses (
    course_id bigint PK,
    course_name varchar(255),
    skills text,
    level varchar(50),
    duration_weeks int,
    fee int,
    provider varchar(255),
    mode varchar(50)
  )
IMPORTANT: Can only query the courses table. No cross-database references allowed.
Use LOWER() for case-insensitive text matches. Search course_name and skills for relevant keywords.`

// DefaultJobSchemaSummary describes the job source the way the planner
// model sees it.
const DefaultJobSchemaSummary = `job database - INDEPENDENT DATABASE
Tables:
  jobs (
    job_id bigint PK,
    job_title varchar(255),
    role varchar(255),
    company varchar(255),
    skills text,
    experience varchar(50),
    qualifications varchar(100),
    salary_range varchar(50),
    location varchar(100),
    work_type varchar(50)
  )
IMPORTANT: Can only query the jobs table. No cross-database references allowed.
Use LOWER() for case-insensitive text matches. Search job_title, role, and skills for relevant keywords.`

// Validate checks the configuration for problems that would only surface
// confusingly later.
func (c *Config) Validate() error {
	for _, name := range []string{SourceCourse, SourceJob} {
		src, ok := c.Sources[name]
		if !ok {
			return fmt.Errorf("missing required source %q", name)
		}
		if !adapter.IsRegistered(src.Type) {
			return fmt.Errorf("source %q: unknown adapter type %q (available: %v)",
				name, src.Type, adapter.ListAdapters())
		}
	}
	if c.Pipeline.MaxRows <= 0 {
		return fmt.Errorf("pipeline.max_rows must be positive, got %d", c.Pipeline.MaxRows)
	}
	if c.Pipeline.BatchMaxRows <= 0 {
		return fmt.Errorf("pipeline.batch_max_rows must be positive, got %d", c.Pipeline.BatchMaxRows)
	}
	return nil
}

// SchemaSummary returns the configured summary for a source, or the built-in
// default when none is set.
func (c *Config) SchemaSummary(name string) string {
	if src, ok := c.Sources[name]; ok && src.SchemaSummary != "" {
		return src.SchemaSummary
	}
	switch name {
	case SourceCourse:
		return DefaultCourseSchemaSummary
	case SourceJob:
		return DefaultJobSchemaSummary
	}
	return ""
}
