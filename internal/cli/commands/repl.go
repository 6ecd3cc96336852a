package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/server"
)

func runAskShell(cmd *cobra.Command, opts *AskOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	historyFile := filepath.Join(os.TempDir(), "fedsql_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fedsql> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "FedSQL interactive shell")
	_, _ = fmt.Fprintln(out, "Type a question, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleShellCommand(out, cmd.ErrOrStderr(), line, opts); quit {
				break
			}
			continue
		}

		res, err := cc.Pipeline.Answer(cmd.Context(), line, cc.Cfg.Pipeline.MaxRows)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if err := renderResult(out, res, cc.Cfg.Output, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// handleShellCommand processes a dot-command and reports whether the shell
// should exit.
func handleShellCommand(out, errOut io.Writer, line string, opts *AskOptions) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(out)

	case ".examples":
		for _, q := range server.ExampleQuestions {
			_, _ = fmt.Fprintf(out, "  - %s\n", q)
		}

	case ".sql":
		opts.ShowSQL = !opts.ShowSQL
		_, _ = fmt.Fprintf(out, "show SQL: %v\n", opts.ShowSQL)

	case ".tables":
		opts.ShowTables = !opts.ShowTables
		_, _ = fmt.Fprintf(out, "show tables: %v\n", opts.ShowTables)

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", line)
	}
	return false
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .examples       Show example questions
  .sql            Toggle printing of generated SQL
  .tables         Toggle printing of result tables
  .clear          Clear the screen
  .quit, .exit    Exit the shell

Anything else is treated as a question.
`
	_, _ = fmt.Fprintln(w, help)
}
