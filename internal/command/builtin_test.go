package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/config"
)

func TestHelpCommandExecute(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewVersionCommand("1.0.0"))
	registry.Register(NewConfigCommand(config.NewConfig(), ""))
	registry.Register(NewRunCommand(config.NewConfig()))
	cmd := NewHelpCommand(registry)
	registry.Register(cmd)

	t.Run("general help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
		for _, part := range []string{"wrt - ", "Usage: wrt <command>", "Available commands:", "  config", "  run", "  version"} {
			assert.Contains(t, stdout.String(), part)
		}
	})

	t.Run("command help lists flags", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, cmd.Execute(context.Background(), []string{"run"}, &stdout, &stderr))
		out := stdout.String()
		assert.Contains(t, out, "Usage: run [options] <manifest.yaml>")
		assert.Contains(t, out, "Flags:")
		assert.Contains(t, out, "-events")
		assert.Contains(t, out, "-ephemeral")
	})

	t.Run("unknown command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Error(t, cmd.Execute(context.Background(), []string{"nope"}, &stdout, &stderr))
		assert.Contains(t, stderr.String(), "Unknown command: nope")
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Equal(t, "wrt version 1.2.3\n", stdout.String())

	assert.Error(t, cmd.Execute(context.Background(), []string{"extra"}, &stdout, &stderr))
}

func execConfig(t *testing.T, cmd *ConfigCommand, flags []string, args ...string) (string, string, error) {
	t.Helper()
	fs := newFlagSet(cmd)
	require.NoError(t, fs.Parse(flags))
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(context.Background(), append(fs.Args(), args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestConfigCommand_GetSet(t *testing.T) {
	t.Setenv("WRT_LOG_LEVEL", "")
	os.Unsetenv("WRT_LOG_LEVEL")
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("log.level warn\n\n[device]\nlocale en-US\n"), 0644))
	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	cmd := NewConfigCommand(cfg, path)

	out, _, err := execConfig(t, cmd, nil, "log.level")
	require.NoError(t, err)
	assert.Equal(t, "log.level: warn\n", out)

	out, _, err = execConfig(t, cmd, nil, "engine.sync-timeout")
	require.NoError(t, err)
	assert.Equal(t, "engine.sync-timeout: 5s\n", out)

	out, _, err = execConfig(t, cmd, []string{"-section", "device"}, "battery.level")
	require.NoError(t, err)
	assert.Equal(t, "battery.level: 1\n", out)

	_, _, err = execConfig(t, cmd, []string{"-section", "device"}, "locale", "ko-KR")
	require.NoError(t, err)
	_, _, err = execConfig(t, cmd, nil, "access.default", "permit")
	require.NoError(t, err)

	reloaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Warnings)
	assert.Equal(t, "ko-KR", reloaded.Device().String("locale"))
	assert.Equal(t, "permit", reloaded.GetString("access.default"))
	assert.Equal(t, "warn", reloaded.GetString("log.level"))
}

func TestConfigCommand_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cmd := NewConfigCommand(config.NewConfig(), path)

	_, stderr, err := execConfig(t, cmd, []string{"-section", "device"}, "battery.level", "full")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Refusing to set battery.level")

	_, _, err = execConfig(t, cmd, nil, "no.such.option", "1")
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestConfigCommand_ShowAllAndValidate(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(`
verbose true
bogus 1
[device]
locale de-DE
[access]
mediakey permit app.trusted
`))
	require.NoError(t, err)
	cmd := NewConfigCommand(cfg, "")

	out, _, err := execConfig(t, cmd, []string{"-all"})
	require.NoError(t, err)
	assert.Contains(t, out, "  verbose: true\n")
	assert.Contains(t, out, "[device]\n  locale: de-DE\n")
	assert.Contains(t, out, "[access]\n  mediakey permit app.trusted\n")

	out, _, err = execConfig(t, cmd, nil, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration has 1 issue(s):")
	assert.Contains(t, out, `unknown global option: "bogus"`)

	out, _, err = execConfig(t, cmd, nil, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "[device] Options:")
}

func TestConfigCommand_ValidateCompilesConditions(t *testing.T) {
	cfg := config.NewConfig()
	cfg.AccessRules = append(cfg.AccessRules, mustRule(t, "push permit app.trusted &&"))
	out, _, err := execConfig(t, NewConfigCommand(cfg, ""), nil, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "access rule 1 (push)")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config")
	cmd := NewInitCommand(path)

	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Initialized wrt configuration at: "+path)
	assert.Empty(t, stderr.String())

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)
	assert.NotEmpty(t, cfg.AccessRules)
	_, err = cfg.Policy()
	require.NoError(t, err)

	stdout.Reset()
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "already exists")
}
