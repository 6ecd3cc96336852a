// Package decompose turns a natural language question into per-source SQL
// plus a rewritten intent string, using a language model with a deterministic
// template fallback.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/skillbridge-labs/fedsql/internal/llm"
)

// Decomposition is the structured translation of one question. An empty SQL
// string means the corresponding source is not consulted.
type Decomposition struct {
	NaturalQuery string `json:"natural_query"`
	CourseSQL    string `json:"course_sql"`
	JobSQL       string `json:"job_sql"`
}

// HasQueries reports whether at least one source received SQL. When false
// the pipeline short-circuits to the out-of-scope answer path.
func (d *Decomposition) HasQueries() bool {
	return d.CourseSQL != "" || d.JobSQL != ""
}

// Error indicates the model output could not be turned into a usable
// decomposition. It is terminal for the request.
type Error struct {
	Question string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to decompose question %q: %v", e.Question, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Schemas carries the fixed per-source schema summaries injected at startup.
type Schemas struct {
	Course string
	Job    string
}

// Decomposer generates SQL decompositions for natural language questions.
type Decomposer struct {
	client         llm.Client
	schemas        Schemas
	maxAttempts    int
	enableFallback bool
	fallbackRole   string
	logger         *slog.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithMaxAttempts sets how many model calls to try before giving up or
// falling back. Values below one are clamped to one.
func WithMaxAttempts(n int) Option {
	return func(d *Decomposer) {
		if n < 1 {
			n = 1
		}
		d.maxAttempts = n
	}
}

// WithFallback toggles the deterministic template fallback.
func WithFallback(enabled bool) Option {
	return func(d *Decomposer) { d.enableFallback = enabled }
}

// WithFallbackRole sets the role assumed when no role can be extracted from
// the question.
func WithFallbackRole(role string) Option {
	return func(d *Decomposer) {
		if role != "" {
			d.fallbackRole = role
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decomposer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decomposer.
func New(client llm.Client, schemas Schemas, opts ...Option) *Decomposer {
	d := &Decomposer{
		client:         client,
		schemas:        schemas,
		maxAttempts:    2,
		enableFallback: true,
		fallbackRole:   "Data Scientist",
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

const decomposeTemperature = 0.05

var multiSpaceRe = regexp.MustCompile(`\s+`)

// normalizeSQL collapses whitespace runs so generated SQL logs and compares
// cleanly.
func normalizeSQL(sql string) string {
	return multiSpaceRe.ReplaceAllString(strings.TrimSpace(sql), " ")
}

// Decompose generates per-source SQL for the question. Unparsable or
// incomplete model output falls back to deterministic templates when enabled,
// and surfaces as *Error otherwise. An unreachable model endpoint is passed
// through as llm.UnavailableError, which is terminal for the request.
func (d *Decomposer) Decompose(ctx context.Context, question string) (*Decomposition, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		raw, err := d.client.Complete(ctx, d.buildPrompt(question), decomposeTemperature)
		if err != nil {
			var unavailable *llm.UnavailableError
			if errors.As(err, &unavailable) {
				return nil, err
			}
			lastErr = err
			d.logger.Warn("decomposition attempt failed",
				slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}

		var payload Decomposition
		if err := llm.DecodeJSONObject(raw, &payload); err != nil {
			lastErr = err
			d.logger.Warn("decomposition output not parsable",
				slog.Int("attempt", attempt), slog.Any("error", err))
			continue
		}

		payload.CourseSQL = normalizeSQL(payload.CourseSQL)
		payload.JobSQL = normalizeSQL(payload.JobSQL)
		payload.NaturalQuery = strings.TrimSpace(payload.NaturalQuery)

		missingCourse := payload.CourseSQL == "" && needsCourseSource(question)
		missingJob := payload.JobSQL == "" && needsJobSource(question)

		// Both sides empty is a legitimate outcome only when the question
		// points at neither source; the pipeline then short-circuits to the
		// out-of-scope answer path.
		neitherIndicated := !needsCourseSource(question) && !needsJobSource(question)
		if !missingCourse && !missingJob && (payload.HasQueries() || neitherIndicated) {
			return &payload, nil
		}

		lastErr = fmt.Errorf("model returned incomplete SQL payload")
		d.logger.Warn("decomposition incomplete",
			slog.Int("attempt", attempt),
			slog.Bool("course_sql", payload.CourseSQL != ""),
			slog.Bool("job_sql", payload.JobSQL != ""))
	}

	if d.enableFallback {
		d.logger.Info("using deterministic decomposition fallback",
			slog.String("question", question))
		return d.fallback(question), nil
	}

	return nil, &Error{Question: question, Err: lastErr}
}
