package sound

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/access"
	soundsvc "github.com/wrtplugins/wrt/internal/platform/sound"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugin/plugintest"
)

func setup(t *testing.T, features ...string) (*plugintest.Harness, *soundsvc.Service) {
	t.Helper()
	svc := soundsvc.NewService(9, soundsvc.DefaultDevices())
	h := plugintest.New(t, features...)
	h.Install(Name, func(env *plugin.Env) *goja.Object { return Install(env, svc) })
	return h, svc
}

func TestSound_Volume(t *testing.T) {
	h, svc := setup(t, access.Sound, access.VolumeSet)
	assert.Equal(t, 0.6, h.Eval(`sound.getVolume("MEDIA")`))

	h.Run(`
		var changes = [];
		sound.setVolumeChangeListener(function (type, v) { changes.push(type + "=" + v); });
		sound.setVolume("MEDIA", 1);
	`)
	h.WaitFor(`changes.length === 1`)
	assert.Equal(t, "MEDIA=1", h.Eval(`changes[0]`))
	v, err := svc.Volume(soundsvc.Media)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	h.Run(`sound.unsetVolumeChangeListener();`)
	assert.Equal(t, 0, svc.Subscribers())
}

func TestSound_ModeListener(t *testing.T) {
	h, svc := setup(t, access.Sound)
	assert.Equal(t, "SOUND", h.Eval(`sound.getSoundMode()`))

	h.Run(`
		var modes = [];
		sound.setSoundModeListener(function (mode) { modes.push(mode); });
	`)
	require.NoError(t, svc.SetMode(soundsvc.ModeVibrate))
	require.NoError(t, svc.SetMode(soundsvc.ModeMute))
	h.WaitFor(`modes.length === 2`)
	assert.Equal(t, "VIBRATE,MUTE", h.Eval(`modes.join(",")`))
	assert.Equal(t, "MUTE", h.Eval(`sound.getSoundMode()`))
}

func TestSound_Devices(t *testing.T) {
	h, svc := setup(t, access.Sound)
	assert.Equal(t, int64(2), h.Eval(`sound.getConnectedDeviceList().length`))
	assert.Equal(t, "SPEAKER:OUT:true", h.Eval(`
		var d = sound.getActivatedDeviceList()[0];
		d.device + ":" + d.direction + ":" + d.isActivated;
	`))

	h.Run(`
		var seen = [];
		var id = sound.addDeviceStateChangeListener(function (info) {
			seen.push(info.name + ":" + info.isConnected + ":" + info.isActivated);
		});
	`)
	require.NoError(t, svc.Connect(3))
	h.WaitFor(`seen.length === 2`)
	assert.Equal(t, "Built-in speaker:true:false,Headset:true:true", h.Eval(`seen.join(",")`))

	h.Run(`sound.removeDeviceStateChangeListener(id);`)
	assert.Equal(t, "NotFoundError", h.Throws(`sound.removeDeviceStateChangeListener(id)`))
	assert.Equal(t, 0, svc.Subscribers())
}

func TestSound_Errors(t *testing.T) {
	h, _ := setup(t, access.Sound, access.VolumeSet)
	for _, tc := range [][2]string{
		{`sound.getVolume("RADIO")`, "TypeMismatchError"},
		{`sound.setVolume("MEDIA", 1.5)`, "InvalidValuesError"},
		{`sound.setVolume("MEDIA", -1)`, "InvalidValuesError"},
		{`sound.setVolume("MEDIA", "loud")`, "TypeMismatchError"},
		{`sound.setSoundModeListener(3)`, "TypeMismatchError"},
		{`sound.addDeviceStateChangeListener()`, "TypeMismatchError"},
		{`sound.removeDeviceStateChangeListener(42)`, "NotFoundError"},
	} {
		assert.Equal(t, tc[1], h.Throws(tc[0]), tc[0])
	}
}

func TestSound_SetVolumeNeedsPrivilege(t *testing.T) {
	h, _ := setup(t, access.Sound)
	assert.Equal(t, 0.6, h.Eval(`sound.getVolume("ALARM")`))
	assert.Equal(t, "SecurityError", h.Throws(`sound.setVolume("ALARM", 0)`))
}
