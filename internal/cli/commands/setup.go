// Package commands implements the fedsql subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/answer"
	"github.com/skillbridge-labs/fedsql/internal/config"
	"github.com/skillbridge-labs/fedsql/internal/decompose"
	"github.com/skillbridge-labs/fedsql/internal/federate"
	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/merge"
	"github.com/skillbridge-labs/fedsql/internal/pipeline"
	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

// Runtime state set by the root command before any subcommand runs.
var (
	currentCfg    *config.Config
	currentLogger *slog.Logger
)

// SetRuntime stores the loaded configuration and logger for subcommands.
func SetRuntime(cfg *config.Config, logger *slog.Logger) {
	currentCfg = cfg
	currentLogger = logger
}

// NewLogger builds the slog logger used across commands. Verbose enables
// debug output; otherwise only warnings and errors reach the terminal so
// rendered results stay readable.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func getConfig() (*config.Config, error) {
	if currentCfg != nil {
		return currentCfg, nil
	}
	return config.LoadConfig("", nil)
}

func getLogger() *slog.Logger {
	if currentLogger != nil {
		return currentLogger
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline
	Course   adapter.Adapter
	Job      adapter.Adapter
}

// NewCommandContext wires adapters, the model client, and the pipeline from
// the current configuration. The returned cleanup must be called (typically
// via defer) to close the source connections.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := getLogger()
	ctx := cmd.Context()

	course, job, cleanup, err := connectSources(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	client, err := newModelClient(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	p := buildPipeline(cfg, client, course, job, logger)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Pipeline: p,
		Course:   course,
		Job:      job,
	}, cleanup, nil
}

// NewSourcesContext connects the federated sources without a model client.
// Used by commands that only touch the databases.
func NewSourcesContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := getLogger()

	course, job, cleanup, err := connectSources(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Course: course,
		Job:    job,
	}, cleanup, nil
}

func connectSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, adapter.Adapter, func(), error) {
	course, err := connectSource(ctx, cfg, config.SourceCourse, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	job, err := connectSource(ctx, cfg, config.SourceJob, logger)
	if err != nil {
		_ = course.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = course.Close()
		_ = job.Close()
	}
	return course, job, cleanup, nil
}

func connectSource(ctx context.Context, cfg *config.Config, name string, logger *slog.Logger) (adapter.Adapter, error) {
	src := cfg.Sources[name]
	ad, err := adapter.NewAdapter(src.AdapterConfig(), logger.With(slog.String("source", name)))
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if err := ad.Connect(ctx, src.AdapterConfig()); err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	return ad, nil
}

func newModelClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "gemini":
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key is not set (use --api-key or FEDSQL_LLM__API_KEY)")
		}
		return llm.NewGemini(ctx, cfg.LLM.APIKey,
			llm.WithModel(cfg.LLM.Model),
			llm.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildPipeline(cfg *config.Config, client llm.Client, course, job adapter.Adapter, logger *slog.Logger) *pipeline.Pipeline {
	schemas := decompose.Schemas{
		Course: cfg.SchemaSummary(config.SourceCourse),
		Job:    cfg.SchemaSummary(config.SourceJob),
	}
	decomposer := decompose.New(client, schemas,
		decompose.WithFallback(cfg.Pipeline.Fallback),
		decompose.WithFallbackRole(cfg.Pipeline.FallbackRole),
		decompose.WithLogger(logger))
	executor := federate.New(course, job, logger)
	merger := merge.New(client, logger)
	synthesizer := answer.New(client, logger)
	return pipeline.New(decomposer, executor, merger, synthesizer, logger)
}
