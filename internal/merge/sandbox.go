package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// outputName is the global the generated snippet must bind its result to.
const outputName = "merged"

// Runner executes generated merge snippets under a restricted Starlark
// environment. The only names in scope are the two input tables, the "tbl"
// and "num" capability modules, and Starlark's own universe (len, min, max,
// sorted, range, print and friends). Starlark has no filesystem, network,
// or process capability, so referencing one fails name resolution. A load
// statement parses but fails at execution since no loader is installed;
// that failure is a violation too, not a runtime error of the snippet.
//
// The restriction is an allow-list, not an isolation boundary: it does not
// bound time or memory. Callers own the deadline; Run honors cancellation
// of ctx by cancelling the Starlark thread.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a sandbox runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{logger: logger}
}

// Run executes the snippet against copies of the two input tables and
// returns the merged RowSet. Failures map onto the merge taxonomy:
// *Violation for names outside the sandbox, *OutputError for a missing or
// ill-shaped output binding, *RuntimeError for everything else.
func (r *Runner) Run(ctx context.Context, code string, course, job *rowset.RowSet) (*rowset.RowSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RuntimeError{Err: err}
	}

	// The snippet gets copies so it cannot corrupt the caller's RowSets.
	courseTable, err := tableToStarlark(course.Clone())
	if err != nil {
		return nil, &RuntimeError{Err: fmt.Errorf("failed to convert course table: %w", err)}
	}
	jobTable, err := tableToStarlark(job.Clone())
	if err != nil {
		return nil, &RuntimeError{Err: fmt.Errorf("failed to convert job table: %w", err)}
	}

	predeclared := starlark.StringDict{
		"course": courseTable,
		"job":    jobTable,
		"tbl":    tblModule(),
		"num":    numModule(),
	}

	thread := &starlark.Thread{
		Name: "merge",
		Print: func(_ *starlark.Thread, msg string) {
			r.logger.Debug("merge snippet print", slog.String("msg", msg))
		},
	}

	// Cancellation is cooperative at Starlark statement boundaries.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	// Generated snippets are straight-line scripts: allow top-level control
	// flow and reassignment, keep while loops and recursion off.
	opts := &syntax.FileOptions{
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	globals, err := starlark.ExecFileOptions(opts, thread, "merge.star", code, predeclared)
	if err != nil {
		return nil, classifyExecError(err)
	}

	out, ok := globals[outputName]
	if !ok {
		return nil, &OutputError{Reason: fmt.Sprintf("snippet did not bind %q", outputName)}
	}

	rs, err := starlarkToTable(out)
	if err != nil {
		return nil, &OutputError{Reason: err.Error()}
	}
	return rs, nil
}

// classifyExecError maps Starlark failures onto the merge taxonomy.
// Resolution errors and load attempts mean the snippet reached for a
// capability outside the sandbox; anything else that happened while
// evaluating is a runtime failure of the generated code.
func classifyExecError(err error) error {
	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) {
		return &Violation{Detail: resolveErrs.Error()}
	}
	var resolveErr resolve.Error
	if errors.As(err, &resolveErr) {
		return &Violation{Detail: resolveErr.Error()}
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		// Dynamic lookups of unbound names surface at eval time with the
		// same "undefined" wording the resolver uses. Load statements fail
		// at eval with the interpreter's "load not implemented" error
		// because the thread has no loader.
		if strings.Contains(evalErr.Msg, "undefined:") ||
			strings.Contains(evalErr.Msg, "load not implemented") {
			return &Violation{Detail: evalErr.Msg}
		}
		return &RuntimeError{Err: evalErr}
	}

	return &RuntimeError{Err: err}
}
