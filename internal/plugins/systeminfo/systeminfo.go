// Package systeminfo exposes device properties as tizen.systeminfo.
package systeminfo

import (
	"context"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	sysinfosvc "github.com/wrtplugins/wrt/internal/platform/systeminfo"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "systeminfo"

const onChanged = "onchanged"

type module struct {
	env     *plugin.Env
	svc     *sysinfosvc.Service
	watches *plugin.Watches
}

// Install builds the systeminfo object for env's page.
func Install(env *plugin.Env, svc *sysinfosvc.Service) *goja.Object {
	m := &module{env: env, svc: svc, watches: plugin.NewWatches(env)}

	obj := env.VM.NewObject()
	_ = obj.Set("getTotalMemory", func(goja.FunctionCall) goja.Value {
		env.Check(access.SystemInfo)
		v, err := svc.TotalMemory()
		env.Must(err)
		return env.Value(float64(v))
	})
	_ = obj.Set("getAvailableMemory", func(goja.FunctionCall) goja.Value {
		env.Check(access.SystemInfo)
		v, err := svc.AvailableMemory()
		env.Must(err)
		return env.Value(float64(v))
	})
	_ = obj.Set("getCapability", func(call goja.FunctionCall) goja.Value {
		key, err := jsconv.String(call.Argument(0), "key")
		env.Must(err)
		v, err := svc.Capability(key)
		env.Must(err)
		return env.Value(v)
	})
	_ = obj.Set("getPropertyValue", m.getPropertyValue)
	_ = obj.Set("addPropertyValueChangeListener", m.addPropertyValueChangeListener)
	_ = obj.Set("removePropertyValueChangeListener", func(call goja.FunctionCall) goja.Value {
		env.Check(access.SystemInfo)
		id := env.WatchID(call.Argument(0))
		if !m.watches.Remove(id) {
			env.Throw(apierr.New(apierr.InvalidValues, "listener %d not found", id))
		}
		return goja.Undefined()
	})
	return obj
}

func (m *module) property(v goja.Value) sysinfosvc.Property {
	name, err := jsconv.Enum(v, "property", sysinfosvc.Properties)
	m.env.Must(err)
	return sysinfosvc.Property(name)
}

// getPropertyValue(property, successCallback(value), errorCallback?)
func (m *module) getPropertyValue(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.SystemInfo)
	p := m.property(call.Argument(0))
	l := env.Callbacks(call.Argument(1), call.Argument(2))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		v, err := m.svc.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		return bridge.Args(v), nil
	})
	return goja.Undefined()
}

// options of addPropertyValueChangeListener.
type options struct {
	timeout         time.Duration
	high, low       float64
	hasHigh, hasLow bool
}

func (m *module) options(v goja.Value) options {
	env := m.env
	var o options
	obj, err := jsconv.OptionalObject(v, "options")
	env.Must(err)
	if obj == nil {
		return o
	}
	if v := obj.Get("timeout"); !jsconv.IsNullish(v) {
		ms, err := jsconv.Int(v, "timeout")
		env.Must(err)
		if ms < 0 {
			env.Throw(apierr.New(apierr.InvalidValues, "timeout must not be negative"))
		}
		o.timeout = time.Duration(ms) * time.Millisecond
	}
	if v := obj.Get("highThreshold"); !jsconv.IsNullish(v) {
		o.high, err = jsconv.Number(v, "highThreshold")
		env.Must(err)
		o.hasHigh = true
	}
	if v := obj.Get("lowThreshold"); !jsconv.IsNullish(v) {
		o.low, err = jsconv.Number(v, "lowThreshold")
		env.Must(err)
		o.hasLow = true
	}
	return o
}

// accepts applies the thresholds. Properties without a numeric level always
// pass; with thresholds set, a level passes when it is at or above high or at
// or below low.
func (o options) accepts(v any) bool {
	if !o.hasHigh && !o.hasLow {
		return true
	}
	level, ok := sysinfosvc.Level(v)
	if !ok || math.IsNaN(level) {
		return true
	}
	return (o.hasHigh && level >= o.high) || (o.hasLow && level <= o.low)
}

// addPropertyValueChangeListener(property, successCallback(value), options?)
// returns the listener ID.
func (m *module) addPropertyValueChangeListener(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.SystemInfo)
	p := m.property(call.Argument(0))
	o := m.options(call.Argument(2))
	l := env.Listen(map[string]goja.Value{onChanged: call.Argument(1)}, bridge.WithRequired(onChanged))

	id := m.watches.Add(l, m.svc.Subscribe(func(ev sysinfosvc.Event) {
		if ev.Property == p && o.accepts(ev.Value) {
			l.Emit(onChanged, bridge.Args(ev.Value))
		}
	}))
	if o.timeout > 0 {
		// Removing an ID twice is a no-op, so the timer may outlive the listener.
		time.AfterFunc(o.timeout, func() { m.watches.Remove(id) })
	}
	return env.Value(id)
}
