// Package bluetooth exposes the default adapter as
// tizen.bluetooth.getDefaultAdapter().
package bluetooth

import (
	"context"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	btsvc "github.com/wrtplugins/wrt/internal/platform/bluetooth"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "bluetooth"

const (
	onStarted           = "onstarted"
	onDeviceFound       = "ondevicefound"
	onDeviceDisappeared = "ondevicedisappeared"
	onFinished          = "onfinished"
	onStateChanged      = "onstatechanged"
	onNameChanged       = "onnamechanged"
	onVisibilityChanged = "onvisibilitychanged"
)

type module struct {
	env     *plugin.Env
	adapter *btsvc.Adapter
	changes *plugin.Slot
	obj     *goja.Object
}

// Install builds the bluetooth object for env's page.
func Install(env *plugin.Env, adapter *btsvc.Adapter) *goja.Object {
	m := &module{env: env, adapter: adapter, changes: plugin.NewSlot(env)}

	obj := env.VM.NewObject()
	_ = obj.Set("getDefaultAdapter", func(goja.FunctionCall) goja.Value {
		env.Check(access.BluetoothGAP)
		if m.obj == nil {
			m.obj = m.newAdapter()
		}
		return m.obj
	})
	return obj
}

func (m *module) newAdapter() *goja.Object {
	vm := m.env.VM
	obj := vm.NewObject()
	for _, p := range []struct {
		name string
		get  func(btsvc.Info) any
	}{
		{"name", func(i btsvc.Info) any { return i.Name }},
		{"address", func(i btsvc.Info) any { return i.Address }},
		{"powered", func(i btsvc.Info) any { return i.Powered }},
		{"visible", func(i btsvc.Info) any { return i.Visible }},
	} {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(p.get(m.adapter.Info()))
		})
		_ = obj.DefineAccessorProperty(p.name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	_ = obj.Set("setName", m.setName)
	_ = obj.Set("setPowered", m.setPowered)
	_ = obj.Set("setVisible", m.setVisible)
	_ = obj.Set("discoverDevices", m.discoverDevices)
	_ = obj.Set("stopDiscovery", m.stopDiscovery)
	_ = obj.Set("getKnownDevices", m.getKnownDevices)
	_ = obj.Set("getDevice", m.getDevice)
	_ = obj.Set("createBonding", m.createBonding)
	_ = obj.Set("destroyBonding", m.destroyBonding)
	_ = obj.Set("setChangeListener", m.setChangeListener)
	_ = obj.Set("unsetChangeListener", func(goja.FunctionCall) goja.Value {
		m.env.Check(access.BluetoothGAP)
		m.changes.Clear()
		return goja.Undefined()
	})
	return obj
}

// setName(name, successCallback?, errorCallback?)
func (m *module) setName(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothAdmin)
	name, err := jsconv.String(call.Argument(0), "name")
	env.Must(err)
	l := env.OptionalCallbacks(call.Argument(1), call.Argument(2))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		return nil, m.adapter.SetName(ctx, name)
	})
	return goja.Undefined()
}

// setPowered(state, successCallback?, errorCallback?)
func (m *module) setPowered(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothAdmin)
	on, err := jsconv.Bool(call.Argument(0), "state")
	env.Must(err)
	l := env.OptionalCallbacks(call.Argument(1), call.Argument(2))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		return nil, m.adapter.SetPowered(ctx, on)
	})
	return goja.Undefined()
}

// setVisible(mode, successCallback?, errorCallback?)
func (m *module) setVisible(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothAdmin)
	on, err := jsconv.Bool(call.Argument(0), "mode")
	env.Must(err)
	l := env.OptionalCallbacks(call.Argument(1), call.Argument(2))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		return nil, m.adapter.SetVisible(ctx, on)
	})
	return goja.Undefined()
}

// discoverDevices({onstarted, ondevicefound(device), ondevicedisappeared(address),
// onfinished(devices)}, errorCallback?)
func (m *module) discoverDevices(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothGAP)
	cb, err := jsconv.Object(call.Argument(0), "successCallback")
	env.Must(err)
	callbacks := jsconv.Callbacks(cb, onStarted, onDeviceFound, onDeviceDisappeared, onFinished)
	callbacks[bridge.OnError] = call.Argument(1)
	l := env.Listen(callbacks)

	err = m.adapter.Discover(env.Ctx(), func(ev btsvc.DiscoveryEvent) {
		switch ev.Kind {
		case btsvc.DiscoveryStarted:
			l.Emit(onStarted, nil)
		case btsvc.DeviceFound:
			l.Emit(onDeviceFound, bridge.Args(ev.Device))
		case btsvc.DeviceDisappeared:
			l.Emit(onDeviceDisappeared, bridge.Args(ev.Address))
		case btsvc.DiscoveryFinished:
			l.EmitLast(onFinished, bridge.Args(ev.Found))
		}
	})
	if err != nil {
		if !l.Has(bridge.OnError) {
			env.Logger.Warn("[Plugin] unhandled asynchronous error", "error", err)
		}
		l.EmitLast(bridge.OnError, func(vm *goja.Runtime) ([]goja.Value, error) {
			return []goja.Value{apierr.ToJS(vm, err)}, nil
		})
	}
	return goja.Undefined()
}

// stopDiscovery(successCallback?, errorCallback?)
func (m *module) stopDiscovery(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothGAP)
	l := env.OptionalCallbacks(call.Argument(0), call.Argument(1))
	env.Async(l, func(context.Context) (bridge.ArgsFunc, error) {
		if !m.adapter.Info().Powered {
			return nil, apierr.New(apierr.ServiceNotAvailable, "bluetooth adapter is powered off")
		}
		m.adapter.StopDiscovery()
		return nil, nil
	})
	return goja.Undefined()
}

// getKnownDevices(successCallback(devices), errorCallback?)
func (m *module) getKnownDevices(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothGAP)
	l := env.Callbacks(call.Argument(0), call.Argument(1))
	env.Async(l, func(context.Context) (bridge.ArgsFunc, error) {
		if !m.adapter.Info().Powered {
			return nil, apierr.New(apierr.ServiceNotAvailable, "bluetooth adapter is powered off")
		}
		return bridge.Args(m.adapter.KnownDevices()), nil
	})
	return goja.Undefined()
}

// deviceCall reads (address, successCallback, errorCallback?) and completes
// the callbacks with fn's result.
func (m *module) deviceCall(call goja.FunctionCall, required bool, fn func(ctx context.Context, addr string) (bridge.ArgsFunc, error)) {
	env := m.env
	env.Check(access.BluetoothGAP)
	addr, err := jsconv.String(call.Argument(0), "address")
	env.Must(err)
	var l *bridge.Listener
	if required {
		l = env.Callbacks(call.Argument(1), call.Argument(2))
	} else {
		l = env.OptionalCallbacks(call.Argument(1), call.Argument(2))
	}
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) { return fn(ctx, addr) })
}

// getDevice(address, successCallback(device), errorCallback?)
func (m *module) getDevice(call goja.FunctionCall) goja.Value {
	m.deviceCall(call, true, func(ctx context.Context, addr string) (bridge.ArgsFunc, error) {
		d, err := m.adapter.Device(ctx, addr)
		if err != nil {
			return nil, err
		}
		return bridge.Args(d), nil
	})
	return goja.Undefined()
}

// createBonding(address, successCallback(device), errorCallback?)
func (m *module) createBonding(call goja.FunctionCall) goja.Value {
	m.deviceCall(call, true, func(ctx context.Context, addr string) (bridge.ArgsFunc, error) {
		d, err := m.adapter.CreateBonding(ctx, addr)
		if err != nil {
			return nil, err
		}
		return bridge.Args(d), nil
	})
	return goja.Undefined()
}

// destroyBonding(address, successCallback?, errorCallback?)
func (m *module) destroyBonding(call goja.FunctionCall) goja.Value {
	m.deviceCall(call, false, func(ctx context.Context, addr string) (bridge.ArgsFunc, error) {
		return nil, m.adapter.DestroyBonding(ctx, addr)
	})
	return goja.Undefined()
}

// setChangeListener({onstatechanged(powered), onnamechanged(name),
// onvisibilitychanged(visible)})
func (m *module) setChangeListener(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.BluetoothGAP)
	cb, err := jsconv.Object(call.Argument(0), "changeCallback")
	env.Must(err)
	l := env.Listen(jsconv.Callbacks(cb, onStateChanged, onNameChanged, onVisibilityChanged))
	m.changes.Set(l, m.adapter.Subscribe(func(c btsvc.Change) {
		switch c.Kind {
		case btsvc.StateChanged:
			l.Emit(onStateChanged, bridge.Args(c.Info.Powered))
		case btsvc.NameChanged:
			l.Emit(onNameChanged, bridge.Args(c.Info.Name))
		case btsvc.VisibilityChanged:
			l.Emit(onVisibilityChanged, bridge.Args(c.Info.Visible))
		}
	}))
	return goja.Undefined()
}
