package sqlite

import (
	"log/slog"

	"github.com/skillbridge-labs/fedsql/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter {
		return New(logger)
	})
}
