package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("focusctl"))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestParse_Commands(t *testing.T) {
	cli, kctx := parse(t, "sweep", "--batch-size", "25")
	assert.Equal(t, "sweep", kctx.Command())
	assert.Equal(t, 25, cli.Sweep.BatchSize)

	_, kctx = parse(t, "migrate")
	assert.Equal(t, "migrate", kctx.Command())
}

func TestCheckConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reward:\n  xp_per_minute: 5\n"), 0o600))

	cli, kctx := parse(t, "--config", path, "check-config")
	assert.Equal(t, path, cli.Config)
	assert.NoError(t, kctx.Run(cli))

	require.NoError(t, os.WriteFile(path, []byte("reward:\n  xp_per_level: -1\n"), 0o600))
	cli, kctx = parse(t, "--config", path, "check-config")
	assert.Error(t, kctx.Run(cli))
}
