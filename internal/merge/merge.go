// Package merge asks a language model for a transformation snippet over the
// two source tables and executes it under a restricted Starlark sandbox.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// Artifact is the outcome of the merge stage. Exactly one of Result and
// Failure is set; GeneratedCode is kept either way for diagnostics.
type Artifact struct {
	GeneratedCode string
	Result        *rowset.RowSet
	Failure       error
}

// Merged returns the merged RowSet, or an empty one when the stage failed
// or produced nothing. Callers never see a nil table.
func (a *Artifact) Merged() *rowset.RowSet {
	if a == nil || a.Result == nil {
		return rowset.Empty("merged")
	}
	return a.Result
}

// Degraded reports whether the merge failed and the pipeline should present
// the two sources unmerged.
func (a *Artifact) Degraded() bool {
	return a == nil || a.Failure != nil
}

// Merger generates and runs merge snippets.
type Merger struct {
	client llm.Client
	runner *Runner
	logger *slog.Logger
}

// New creates a Merger.
func New(client llm.Client, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{
		client: client,
		runner: NewRunner(logger),
		logger: logger,
	}
}

const mergeTemperature = 0.1

// Merge produces one table from the two source RowSets. All merge failures
// are recorded on the Artifact rather than returned; the only error Merge
// itself returns is llm.UnavailableError, which is terminal for the request.
func (m *Merger) Merge(ctx context.Context, question string, course, job *rowset.RowSet) (*Artifact, error) {
	if course.IsEmpty() && job.IsEmpty() {
		// Nothing to transform; the empty answer branch takes over.
		return &Artifact{Result: rowset.Empty("merged")}, nil
	}

	raw, err := m.client.Complete(ctx, buildMergePrompt(question, course, job), mergeTemperature)
	if err != nil {
		var unavailable *llm.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		m.logger.Warn("merge synthesis failed", slog.Any("error", err))
		return &Artifact{Failure: &OutputError{Reason: fmt.Sprintf("synthesis failed: %v", err)}}, nil
	}

	code := llm.StripCodeFences(raw)
	if code == "" {
		return &Artifact{Failure: &OutputError{Reason: "model returned no code"}}, nil
	}

	result, err := m.runner.Run(ctx, code, course, job)
	if err != nil {
		m.logger.Warn("merge execution degraded",
			slog.Any("error", err), slog.Int("code_len", len(code)))
		return &Artifact{GeneratedCode: code, Failure: err}, nil
	}

	m.logger.Debug("merge complete", slog.Int("merged_rows", result.RowCount))
	return &Artifact{GeneratedCode: code, Result: result}, nil
}
