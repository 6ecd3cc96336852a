package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/server"
)

// BatchOptions holds options for the batch command.
type BatchOptions struct {
	File       string
	JSONOutput bool
	Answers    bool
}

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	opts := &BatchOptions{}

	cmd := &cobra.Command{
		Use:   "batch [questions...]",
		Short: "Run a batch of questions",
		Long: `Run several questions through the pipeline and print a per-question
summary. Questions come from arguments, from a file (one per line, # starts
a comment), or from the built-in examples when neither is given.

A question that fails does not stop the batch.`,
		Example: `  # Run the built-in example questions
  fedsql batch

  # Run questions from a file
  fedsql batch --file questions.txt

  # Run specific questions with full answers
  fedsql batch --answers "react courses" "remote jobs"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "File with one question per line")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.Answers, "answers", false, "Print each final answer, not just the summary")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string, opts *BatchOptions) error {
	questions, err := collectQuestions(args, opts.File)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions to run")
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	type entry struct {
		Question   string `json:"query"`
		OK         bool   `json:"success"`
		CourseRows int    `json:"course_rows"`
		JobRows    int    `json:"job_rows"`
		MergedRows int    `json:"merged_rows"`
		Answer     string `json:"final_answer,omitempty"`
		Err        string `json:"error,omitempty"`
	}

	out := cmd.OutOrStdout()
	entries := make([]entry, 0, len(questions))
	for i, q := range questions {
		if !opts.JSONOutput {
			_, _ = fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(questions), q)
		}

		res, err := cc.Pipeline.Answer(cmd.Context(), q, cc.Cfg.Pipeline.BatchMaxRows)
		if err != nil {
			entries = append(entries, entry{Question: q, Err: err.Error()})
			if !opts.JSONOutput {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  error: %v\n", err)
			}
			continue
		}

		e := entry{
			Question:   q,
			OK:         true,
			CourseRows: res.Course.RowCount,
			JobRows:    res.Job.RowCount,
			MergedRows: res.Merged.RowCount,
			Answer:     res.Answer.Text,
		}
		entries = append(entries, e)
		if !opts.JSONOutput && opts.Answers {
			_, _ = fmt.Fprintf(out, "  %s\n", res.Answer.Text)
		}
	}

	if opts.JSONOutput {
		return renderJSONValue(out, map[string]any{
			"total_queries": len(entries),
			"results":       entries,
		})
	}

	// Summary table
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Question", "Course", "Job", "Merged", "OK"})
	for i, e := range entries {
		status := "yes"
		if !e.OK {
			status = "no"
		}
		t.AppendRow(table.Row{i + 1, truncateQuestion(e.Question), e.CourseRows, e.JobRows, e.MergedRows, status})
	}
	_, _ = fmt.Fprintln(out)
	t.Render()
	return nil
}

func collectQuestions(args []string, file string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if file != "" {
		return readQuestionsFile(file)
	}
	return server.ExampleQuestions, nil
}

func readQuestionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open questions file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func truncateQuestion(q string) string {
	const maxLen = 60
	if len(q) <= maxLen {
		return q
	}
	return q[:maxLen-3] + "..."
}
