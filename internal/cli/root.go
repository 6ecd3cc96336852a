// Package cli provides the command-line interface for FedSQL.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/cli/commands"
	"github.com/skillbridge-labs/fedsql/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fedsql",
		Short: "FedSQL - Federated Question Answering over SQL Sources",
		Long: `FedSQL answers natural-language questions over independent SQL databases.

A question is decomposed into one SQL query per source, the queries run
concurrently against isolated course and job databases, and the results are
combined by a generated merge script before a final answer is written back
in plain language.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			commands.SetRuntime(cfg, commands.NewLogger(cmd.ErrOrStderr(), cfg.Verbose))

			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "Using model: %s\n", cfg.LLM.Model)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Federated question answering over SQL sources
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fedsql.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json|csv|markdown)")
	rootCmd.PersistentFlags().String("api-key", "", "Language model API key")
	rootCmd.PersistentFlags().String("model", "", "Language model name")
	rootCmd.PersistentFlags().Int("max-rows", 0, "Per-source row cap")
	rootCmd.PersistentFlags().String("host", "", "HTTP server bind host")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP server bind port")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv", "markdown"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewAskCommand())
	rootCmd.AddCommand(commands.NewBatchCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
