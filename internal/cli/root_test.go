package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "ask", "batch", "serve", "seed"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCommandFlags(t *testing.T) {
	root := NewRootCmd()

	for _, want := range []string{"config", "verbose", "output", "api-key", "model", "max-rows", "host", "port"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(want), "missing flag %q", want)
	}
}

func TestVersionSubcommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "FedSQL v")
}
