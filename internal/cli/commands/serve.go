package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skillbridge-labs/fedsql/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server exposing the question-answering pipeline.

Endpoints:
  GET  /api/health       Service health
  POST /api/query        Answer one question
  POST /api/query/batch  Answer a batch of questions
  GET  /api/examples     Example questions`,
		Example: `  # Serve on the configured address
  fedsql serve

  # Serve on a specific port
  fedsql serve --port 9090`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cc.Pipeline, cc.Logger,
		server.WithRequestTimeout(cc.Cfg.Server.RequestTimeout),
		server.WithBatchMaxRows(cc.Cfg.Pipeline.BatchMaxRows))

	addr := fmt.Sprintf("%s:%d", cc.Cfg.Server.Host, cc.Cfg.Server.Port)
	return srv.ListenAndServe(ctx, addr)
}
