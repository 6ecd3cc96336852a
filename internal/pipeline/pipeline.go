// Package pipeline wires the decomposition, federation, merge, and answer
// stages into the single operation the callers consume.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbridge-labs/fedsql/internal/answer"
	"github.com/skillbridge-labs/fedsql/internal/decompose"
	"github.com/skillbridge-labs/fedsql/internal/federate"
	"github.com/skillbridge-labs/fedsql/internal/merge"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// Row caps applied when the caller does not supply one.
const (
	DefaultMaxRows      = 100
	DefaultBatchMaxRows = 50
)

// Stage identifies where the pipeline is in handling one request. Stages
// only move forward; the one early exit skips Executing and Merging when
// the decomposition left both sources unqueried.
type Stage string

const (
	StageReceived     Stage = "received"
	StageDecomposing  Stage = "decomposing"
	StageExecuting    Stage = "executing"
	StageMerging      Stage = "merging"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
)

// Result aggregates everything one request produced. All RowSet fields are
// non-nil once Answer returns successfully.
type Result struct {
	RequestID     string                   `json:"request_id"`
	Question      string                   `json:"question"`
	Decomposition *decompose.Decomposition `json:"decomposition"`
	Course        *rowset.RowSet           `json:"course_rowset"`
	Job           *rowset.RowSet           `json:"job_rowset"`
	Merged        *rowset.RowSet           `json:"merged_rowset"`
	Answer        *answer.FinalAnswer      `json:"final_answer"`
	MergeCode     string                   `json:"-"`
}

// Pipeline owns no state across requests; every call to Answer builds its
// entities fresh and discards them with the Result.
type Pipeline struct {
	decomposer  *decompose.Decomposer
	executor    *federate.Executor
	merger      *merge.Merger
	synthesizer *answer.Synthesizer
	logger      *slog.Logger
}

// New assembles a Pipeline from its stages.
func New(
	decomposer *decompose.Decomposer,
	executor *federate.Executor,
	merger *merge.Merger,
	synthesizer *answer.Synthesizer,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		decomposer:  decomposer,
		executor:    executor,
		merger:      merger,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Answer runs the full pipeline for one question. maxRows of zero or below
// falls back to DefaultMaxRows. Only decomposition failures and an
// unreachable model endpoint return an error; everything later degrades
// forward into the answer.
func (p *Pipeline) Answer(ctx context.Context, question string, maxRows int) (*Result, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	res := &Result{
		RequestID: uuid.NewString(),
		Question:  question,
	}
	logger := p.logger.With(slog.String("request_id", res.RequestID))
	logger.Debug("request received", slog.String("question", question), slog.Int("max_rows", maxRows))

	logger.Debug("stage transition", slog.String("stage", string(StageDecomposing)))
	dec, err := p.decomposer.Decompose(ctx, question)
	if err != nil {
		logger.Error("decomposition failed", slog.Any("error", err))
		return nil, err
	}
	res.Decomposition = dec

	if !dec.HasQueries() {
		// Nothing to execute or merge; go straight to the empty branch.
		logger.Debug("stage transition",
			slog.String("stage", string(StageSynthesizing)), slog.Bool("early_exit", true))
		res.Course = rowset.Empty(federate.SourceCourse)
		res.Job = rowset.Empty(federate.SourceJob)
		res.Merged = rowset.Empty("merged")
		return p.finish(ctx, logger, res, false)
	}

	logger.Debug("stage transition", slog.String("stage", string(StageExecuting)))
	outcome := p.executor.Execute(ctx, dec, maxRows)
	res.Course = outcome.Course
	res.Job = outcome.Job
	if outcome.Degraded() {
		logger.Warn("federated execution degraded",
			slog.Any("course_error", outcome.CourseErr),
			slog.Any("job_error", outcome.JobErr))
	}

	logger.Debug("stage transition", slog.String("stage", string(StageMerging)))
	artifact, err := p.merger.Merge(ctx, question, outcome.Course, outcome.Job)
	if err != nil {
		logger.Error("merge synthesis unavailable", slog.Any("error", err))
		return nil, err
	}
	res.Merged = artifact.Merged()
	res.MergeCode = artifact.GeneratedCode

	return p.finish(ctx, logger, res, artifact.Degraded())
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, res *Result, mergeDegraded bool) (*Result, error) {
	logger.Debug("stage transition", slog.String("stage", string(StageSynthesizing)))
	final, err := p.synthesizer.Synthesize(ctx, &answer.Input{
		Question:      res.Question,
		NaturalQuery:  res.Decomposition.NaturalQuery,
		Merged:        res.Merged,
		Course:        res.Course,
		Job:           res.Job,
		MergeDegraded: mergeDegraded,
	})
	if err != nil {
		logger.Error("answer synthesis unavailable", slog.Any("error", err))
		return nil, err
	}
	res.Answer = final

	logger.Debug("stage transition",
		slog.String("stage", string(StageDone)),
		slog.Int("merged_rows", res.Merged.RowCount),
		slog.Int("suggestions", len(final.Suggestions)))
	return res, nil
}
