package plugins

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/config"
	"github.com/wrtplugins/wrt/internal/platform/device"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugin/plugintest"
	"github.com/wrtplugins/wrt/internal/storage"
)

func setup(t *testing.T, features ...string) *plugintest.Harness {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader("[device]\nlatency 0s\n"))
	require.NoError(t, err)
	dev, err := device.New(cfg, storage.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	h := plugintest.New(t, features...)
	h.Install(Global, func(env *plugin.Env) *goja.Object {
		return Install(env, dev, h.Engine.Registry())
	})
	return h
}

func TestInstall_GlobalAndRequire(t *testing.T) {
	h := setup(t, access.Sound)

	for _, name := range Names {
		assert.Equal(t, "object", h.Eval(`typeof tizen.`+name), name)
		assert.Equal(t, true, h.Eval(`require("tizen/`+name+`") === tizen.`+name), name)
	}
	assert.Equal(t, true, h.Eval(`require("tizen/StatusNotification") === tizen.StatusNotification`))
	assert.Equal(t, "SIMPLE", h.Eval(`new tizen.StatusNotification("SIMPLE", "hi").statusType`))
	assert.Equal(t, "SOUND", h.Eval(`tizen.sound.getSoundMode()`))
}

func TestInstall_PluginsAreReadOnly(t *testing.T) {
	h := setup(t)
	assert.Equal(t, "TypeError", h.Throws(`(function () { "use strict"; tizen.sound = null; })()`))
	assert.Equal(t, "TypeError", h.Throws(`(function () { "use strict"; delete tizen.push; })()`))
	assert.Equal(t, "", h.Throws(`tizen.sound = null`), "sloppy code ignores the write")
	assert.Equal(t, "object", h.Eval(`typeof tizen.sound`))
	assert.Equal(t, "object", h.Eval(`typeof tizen.push`))
}

func TestInstall_AccessIsPerApp(t *testing.T) {
	h := setup(t)
	assert.Equal(t, "SecurityError", h.Throws(`tizen.sound.getSoundMode()`))
	assert.Equal(t, "", h.Throws(`tizen.systeminfo.getCapability("http://tizen.org/feature/screen.width")`))
}
