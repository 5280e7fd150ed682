package systemsetting

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/access"
	settingsvc "github.com/wrtplugins/wrt/internal/platform/systemsetting"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugin/plugintest"
	"github.com/wrtplugins/wrt/internal/storage"
)

func setup(t *testing.T, features ...string) *plugintest.Harness {
	t.Helper()
	svc := settingsvc.NewService(storage.NewMemoryStore(), 0, nil)
	h := plugintest.New(t, features...)
	h.Install(Name, func(env *plugin.Env) *goja.Object { return Install(env, svc) })
	return h
}

func TestSystemSetting_SetThenGet(t *testing.T) {
	h := setup(t, access.Setting)
	img := filepath.Join(t.TempDir(), "lock.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	h.Run(`
		var set = false, value = null, err = null;
		systemsetting.setProperty("LOCK_SCREEN", ` + strconv.Quote(img) + `, function () {
			set = true;
			systemsetting.getProperty("LOCK_SCREEN", function (v) { value = v; });
		}, function (e) { err = e.name; });
	`)
	h.WaitFor(`value !== null`)
	assert.Equal(t, true, h.Eval(`set`))
	assert.Equal(t, img, h.Eval(`value`))
	assert.Nil(t, h.Eval(`err`))
}

func TestSystemSetting_AsyncError(t *testing.T) {
	h := setup(t, access.Setting)
	h.Run(`
		var ok = 0, err = null;
		systemsetting.setProperty("HOME_SCREEN", "/no/such/file.png",
			function () { ok++; }, function (e) { err = e.name; });
	`)
	h.WaitFor(`err !== null`)
	h.Settle()
	assert.Equal(t, "InvalidValuesError", h.Eval(`err`))
	assert.Equal(t, int64(0), h.Eval(`ok`))
}

func TestSystemSetting_Validation(t *testing.T) {
	h := setup(t, access.Setting)
	assert.Equal(t, "TypeMismatchError", h.Throws(`systemsetting.getProperty("WALLPAPER", function () {})`))
	assert.Equal(t, "TypeMismatchError", h.Throws(`systemsetting.getProperty("HOME_SCREEN")`))
	assert.Equal(t, "TypeMismatchError", h.Throws(`systemsetting.setProperty("HOME_SCREEN", undefined, function () {})`))
}

func TestSystemSetting_AccessDenied(t *testing.T) {
	h := setup(t)
	assert.Equal(t, "SecurityError", h.Throws(`systemsetting.getProperty("HOME_SCREEN", function () {})`))
}
