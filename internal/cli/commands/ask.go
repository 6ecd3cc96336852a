package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/pipeline"
)

// AskOptions holds options for the ask command.
type AskOptions struct {
	ShowTables bool
	ShowSQL    bool
}

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question over the federated sources",
		Long: `Answer a natural-language question by querying the course and job
databases and combining the results.

Without a question, ask starts an interactive shell.`,
		Example: `  # One-off question
  fedsql ask "which courses teach React and which frontend jobs need it?"

  # Show the generated SQL and result tables too
  fedsql ask --sql --tables "courses for BTech graduates"

  # Interactive shell
  fedsql ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runAskShell(cmd, opts)
			}
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ShowTables, "tables", false, "Print the per-source and merged result tables")
	cmd.Flags().BoolVar(&opts.ShowSQL, "sql", false, "Print the generated SQL")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts *AskOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cc.Pipeline.Answer(cmd.Context(), question, cc.Cfg.Pipeline.MaxRows)
	if err != nil {
		return err
	}

	return renderResult(cmd.OutOrStdout(), res, cc.Cfg.Output, opts)
}

func renderResult(w io.Writer, res *pipeline.Result, format string, opts *AskOptions) error {
	if format == "json" {
		return renderResultJSON(w, res)
	}

	if opts.ShowSQL && res.Decomposition != nil {
		if res.Decomposition.CourseSQL != "" {
			_, _ = fmt.Fprintf(w, "course: %s\n", res.Decomposition.CourseSQL)
		}
		if res.Decomposition.JobSQL != "" {
			_, _ = fmt.Fprintf(w, "job:    %s\n", res.Decomposition.JobSQL)
		}
		_, _ = fmt.Fprintln(w)
	}

	if opts.ShowTables {
		_, _ = fmt.Fprintln(w, "Course results:")
		if err := renderRowSet(w, res.Course, format); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "\nJob results:")
		if err := renderRowSet(w, res.Job, format); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "\nMerged:")
		if err := renderRowSet(w, res.Merged, format); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}

	if res.Answer != nil {
		_, _ = fmt.Fprintln(w, res.Answer.Text)
		if len(res.Answer.Suggestions) > 0 {
			_, _ = fmt.Fprintln(w, "\nTry asking:")
			for _, s := range res.Answer.Suggestions {
				_, _ = fmt.Fprintf(w, "  - %s\n", s)
			}
		}
	}
	return nil
}

func renderResultJSON(w io.Writer, res *pipeline.Result) error {
	return renderJSONValue(w, map[string]any{
		"request_id":    res.RequestID,
		"query":         res.Question,
		"decomposition": res.Decomposition,
		"results": map[string]any{
			"course": res.Course,
			"job":    res.Job,
			"merged": res.Merged,
		},
		"final_answer": res.Answer,
	})
}
