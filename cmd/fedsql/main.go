// Package main provides the fedsql command.
package main

import (
	"os"

	"github.com/skillbridge-labs/fedsql/internal/cli"

	// Register the source adapters.
	_ "github.com/skillbridge-labs/fedsql/pkg/adapters/duckdb"
	_ "github.com/skillbridge-labs/fedsql/pkg/adapters/postgres"
	_ "github.com/skillbridge-labs/fedsql/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
