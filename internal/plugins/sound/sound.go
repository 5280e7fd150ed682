// Package sound exposes the sound manager as tizen.sound.
package sound

import (
	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	soundsvc "github.com/wrtplugins/wrt/internal/platform/sound"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "sound"

const onChanged = "onchanged"

type module struct {
	env     *plugin.Env
	svc     *soundsvc.Service
	mode    *plugin.Slot
	volume  *plugin.Slot
	devices *plugin.Watches
}

// Install builds the sound object for env's page.
func Install(env *plugin.Env, svc *soundsvc.Service) *goja.Object {
	m := &module{
		env:     env,
		svc:     svc,
		mode:    plugin.NewSlot(env),
		volume:  plugin.NewSlot(env),
		devices: plugin.NewWatches(env),
	}

	obj := env.VM.NewObject()
	_ = obj.Set("getSoundMode", func(goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		return env.Value(string(svc.Mode()))
	})
	_ = obj.Set("setVolume", m.setVolume)
	_ = obj.Set("getVolume", m.getVolume)
	_ = obj.Set("setSoundModeListener", m.setSoundModeListener)
	_ = obj.Set("unsetSoundModeListener", func(goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		m.mode.Clear()
		return goja.Undefined()
	})
	_ = obj.Set("setVolumeChangeListener", m.setVolumeChangeListener)
	_ = obj.Set("unsetVolumeChangeListener", func(goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		m.volume.Clear()
		return goja.Undefined()
	})
	_ = obj.Set("getConnectedDeviceList", func(goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		return m.deviceList(svc.ConnectedDevices())
	})
	_ = obj.Set("getActivatedDeviceList", func(goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		return m.deviceList(svc.ActivatedDevices())
	})
	_ = obj.Set("addDeviceStateChangeListener", m.addDeviceStateChangeListener)
	_ = obj.Set("removeDeviceStateChangeListener", func(call goja.FunctionCall) goja.Value {
		env.Check(access.Sound)
		id := env.WatchID(call.Argument(0))
		if !m.devices.Remove(id) {
			env.Throw(apierr.New(apierr.NotFound, "listener %d not found", id))
		}
		return goja.Undefined()
	})
	return obj
}

func (m *module) volumeType(v goja.Value) soundsvc.VolumeType {
	name, err := jsconv.Enum(v, "type", soundsvc.VolumeTypes)
	m.env.Must(err)
	return soundsvc.VolumeType(name)
}

// setVolume(type, volume)
func (m *module) setVolume(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.VolumeSet)
	t := m.volumeType(call.Argument(0))
	v, err := jsconv.Number(call.Argument(1), "volume")
	env.Must(err)
	if v < 0 || v > 1 {
		env.Throw(apierr.New(apierr.InvalidValues, "volume must be between 0 and 1"))
	}
	env.Must(m.svc.SetVolume(t, v))
	return goja.Undefined()
}

// getVolume(type)
func (m *module) getVolume(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Sound)
	v, err := m.svc.Volume(m.volumeType(call.Argument(0)))
	env.Must(err)
	return env.Value(v)
}

// setSoundModeListener(callback(mode))
func (m *module) setSoundModeListener(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Sound)
	l := m.listen(call.Argument(0))
	m.mode.Set(l, m.svc.SubscribeMode(func(mode soundsvc.Mode) {
		l.Emit(onChanged, bridge.Args(string(mode)))
	}))
	return goja.Undefined()
}

// setVolumeChangeListener(callback(type, volume))
func (m *module) setVolumeChangeListener(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Sound)
	l := m.listen(call.Argument(0))
	m.volume.Set(l, m.svc.SubscribeVolume(func(ev soundsvc.VolumeEvent) {
		l.Emit(onChanged, bridge.Args(string(ev.Type), ev.Volume))
	}))
	return goja.Undefined()
}

// addDeviceStateChangeListener(callback(info)) returns the listener ID.
func (m *module) addDeviceStateChangeListener(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Sound)
	l := m.listen(call.Argument(0))
	id := m.devices.Add(l, m.svc.SubscribeDevices(func(d soundsvc.Device) {
		l.Emit(onChanged, bridge.Args(d))
	}))
	return env.Value(id)
}

func (m *module) listen(cb goja.Value) *bridge.Listener {
	return m.env.Listen(map[string]goja.Value{onChanged: cb}, bridge.WithRequired(onChanged))
}

func (m *module) deviceList(devices []soundsvc.Device) goja.Value {
	out := make([]any, len(devices))
	for i, d := range devices {
		out[i] = d
	}
	return m.env.VM.NewArray(out...)
}
