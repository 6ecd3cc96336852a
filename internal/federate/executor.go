// Package federate runs a decomposition's per-source SQL against the two
// independent sources, tolerating failure of either side.
package federate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/skillbridge-labs/fedsql/internal/decompose"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

// Source names used throughout the pipeline.
const (
	SourceCourse = "course"
	SourceJob    = "job"
)

// QueryExecutionError indicates one source's query failed. The executor
// degrades that source to an empty RowSet; the error is reported alongside,
// never propagated as a request failure.
type QueryExecutionError struct {
	Source string
	SQL    string
	Err    error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query against %s source failed: %v", e.Source, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Outcome carries both sides' results. Course and Job are never nil: a
// failed or skipped side is an empty RowSet with its error recorded.
type Outcome struct {
	Course    *rowset.RowSet
	Job       *rowset.RowSet
	CourseErr error
	JobErr    error
}

// Degraded reports whether either side failed.
func (o *Outcome) Degraded() bool {
	return o.CourseErr != nil || o.JobErr != nil
}

// Executor runs decomposed SQL against the course and job sources.
type Executor struct {
	course adapter.Adapter
	job    adapter.Adapter
	logger *slog.Logger
}

// New creates an Executor over the two source adapters.
func New(course, job adapter.Adapter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{course: course, job: job, logger: logger}
}

// Execute runs both sides concurrently and waits for both to finish. Each
// side independently degrades to an empty RowSet on failure; Execute itself
// never returns an error and never cancels the surviving side.
func (e *Executor) Execute(ctx context.Context, dec *decompose.Decomposition, maxRows int) *Outcome {
	out := &Outcome{}

	var g errgroup.Group
	g.Go(func() error {
		out.Course, out.CourseErr = e.runSource(ctx, SourceCourse, e.course, dec.CourseSQL, maxRows)
		return nil
	})
	g.Go(func() error {
		out.Job, out.JobErr = e.runSource(ctx, SourceJob, e.job, dec.JobSQL, maxRows)
		return nil
	})
	_ = g.Wait()

	return out
}

// runSource executes one side's SQL. Empty SQL means the source is not
// consulted and yields an empty zero-column RowSet without touching the
// adapter.
func (e *Executor) runSource(ctx context.Context, name string, ad adapter.Adapter, sql string, maxRows int) (*rowset.RowSet, error) {
	if sql == "" {
		return rowset.Empty(name), nil
	}

	if _, err := decompose.EnsureSafeSQL(sql); err != nil {
		e.logger.Warn("rejected unsafe sql",
			slog.String("source", name), slog.String("sql", sql))
		return rowset.Empty(name), &QueryExecutionError{Source: name, SQL: sql, Err: err}
	}

	rows, err := ad.Query(ctx, sql)
	if err != nil {
		e.logger.Warn("source query failed",
			slog.String("source", name), slog.Any("error", err))
		return rowset.Empty(name), &QueryExecutionError{Source: name, SQL: sql, Err: err}
	}
	defer func() { _ = rows.Close() }()

	rs, err := rowset.FromRows(name, rows, maxRows)
	if err != nil {
		e.logger.Warn("failed to read source rows",
			slog.String("source", name), slog.Any("error", err))
		return rowset.Empty(name), &QueryExecutionError{Source: name, SQL: sql, Err: err}
	}

	e.logger.Debug("source query complete",
		slog.String("source", name),
		slog.Int("row_count", rs.RowCount),
		slog.Bool("truncated", rs.Truncated))
	return rs, nil
}
