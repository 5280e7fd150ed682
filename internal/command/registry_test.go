package command

import (
	"context"
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/access"
)

type testCommand struct {
	*BaseCommand
}

func (c *testCommand) Execute(context.Context, []string, io.Writer, io.Writer) error { return nil }

func newFlagSet(cmd Command) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	return fs
}

func mustRule(t *testing.T, line string) access.Rule {
	t.Helper()
	r, err := access.ParseRule(line)
	require.NoError(t, err)
	return r
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(&testCommand{NewBaseCommand("zeta", "Z", "zeta")})
	r.Register(&testCommand{NewBaseCommand("alpha", "A", "alpha")})

	cmd, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "A", cmd.Description())

	_, err = r.Get("missing")
	assert.EqualError(t, err, "command not found: missing")

	assert.Equal(t, []string{"alpha", "zeta"}, r.List())

	r.Register(&testCommand{NewBaseCommand("alpha", "A2", "alpha")})
	cmd, err = r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "A2", cmd.Description())
	assert.Len(t, r.List(), 2)
}
