package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/config"
	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

// SeedOptions holds options for the seed command.
type SeedOptions struct {
	CourseCSV   string
	JobCSV      string
	CourseTable string
	JobTable    string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	opts := &SeedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load CSV data into the federated sources",
		Long: `Load CSV files into the course and job databases.

Each file's header row becomes the column list of a freshly created table,
replacing any table of the same name.`,
		Example: `  # Load both sources
  fedsql seed --course data/courses.csv --job data/jobs.csv

  # Load just the job source into a custom table
  fedsql seed --job data/jobs.csv --job-table postings`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.CourseCSV, "course", "", "CSV file for the course source")
	cmd.Flags().StringVar(&opts.JobCSV, "job", "", "CSV file for the job source")
	cmd.Flags().StringVar(&opts.CourseTable, "course-table", "courses", "Target table in the course source")
	cmd.Flags().StringVar(&opts.JobTable, "job-table", "jobs", "Target table in the job source")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	if opts.CourseCSV == "" && opts.JobCSV == "" {
		return fmt.Errorf("nothing to load: pass --course and/or --job")
	}

	cc, cleanup, err := NewSourcesContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.CourseCSV != "" {
		if err := seedSource(cmd, cc.Course, config.SourceCourse, opts.CourseTable, opts.CourseCSV); err != nil {
			return err
		}
	}
	if opts.JobCSV != "" {
		if err := seedSource(cmd, cc.Job, config.SourceJob, opts.JobTable, opts.JobCSV); err != nil {
			return err
		}
	}
	return nil
}

func seedSource(cmd *cobra.Command, ad adapter.Adapter, source, tableName, path string) error {
	if err := ad.LoadCSV(cmd.Context(), tableName, path); err != nil {
		return fmt.Errorf("source %q: failed to load %s: %w", source, path, err)
	}

	meta, err := ad.GetTableMetadata(cmd.Context(), tableName)
	if err != nil {
		// The load succeeded; metadata is only for the confirmation line.
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s into %s.%s\n", path, source, tableName)
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s into %s.%s (%d rows, %d columns)\n",
		path, source, tableName, meta.RowCount, len(meta.Columns))
	return nil
}
