package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/access"
)

func TestConfigParsing(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
# global options
log.level debug
access.default permit

[access]
push deny
* permit app.trusted

[device]
battery.level 0.25
bluetooth.nearby 00:11:22:33:44:55=Headset, 66:77:88:99:AA:BB=Watch

[run]
timeout 10s
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Warnings)

	assert.Equal(t, "debug", cfg.GetString("log.level"))
	assert.Equal(t, []access.Rule{
		{Feature: access.Push, Decision: access.Deny},
		{Feature: access.AnyFeature, Decision: access.Permit, Condition: "app.trusted"},
	}, cfg.AccessRules)

	dev := cfg.Device()
	assert.Equal(t, 0.25, dev.Float("battery.level"))
	assert.Equal(t, 9, dev.Int("sound.volume"))
	assert.True(t, dev.Bool("bluetooth.powered"))
	assert.Equal(t, 2*time.Second, dev.Duration("bluetooth.scan"))
	assert.Equal(t, "00:11:22:33:44:55=Headset, 66:77:88:99:AA:BB=Watch", dev.String("bluetooth.nearby"))

	assert.Equal(t, 10*time.Second, cfg.Command("run").Duration("timeout"))
	v, ok := cfg.GetSectionOption("run", "log.level")
	assert.True(t, ok)
	assert.Equal(t, "debug", v)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, access.Permit, policy.Default)
	assert.Len(t, policy.Rules, 2)
}

func TestConfigWarnings(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
bogus 1
log.max-files many
[device]
battery.level full
log.level debug
[run]
log.level debug
`))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`global option "log.max-files": expected int, got "many"`,
		`option "battery.level" in [device]: expected float, got "full"`,
		`unknown global option: "bogus" (value: "1")`,
		`unknown option in [device]: "log.level" (value: "debug")`,
	}, cfg.Warnings)
	assert.Equal(t, 1.0, cfg.Device().Float("battery.level"), "malformed values read as the default")
}

func TestConfigInvalidAccessRule(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("[access]\nbluetooth.admin maybe\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = LoadFromReader(strings.NewReader("[access]\nteleport permit\n"))
	assert.ErrorContains(t, err, `unknown feature "teleport"`)
}

func TestConfigPolicyDefault(t *testing.T) {
	p, err := NewConfig().Policy()
	require.NoError(t, err)
	assert.Equal(t, access.Deny, p.Default)
	assert.Empty(t, p.Rules)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromPath(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("verbose true\n"), 0644))
	cfg, err = LoadFromPath(path)
	require.NoError(t, err)
	assert.True(t, cfg.GetBool("verbose"))

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	assert.ErrorContains(t, err, "symlink not allowed")
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("engine.sync-timeout 2s\n"), 0644))
	t.Setenv("WRT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.GetDuration("engine.sync-timeout"))
}
