// Package push exposes the push service as tizen.push.
package push

import (
	"context"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	pushsvc "github.com/wrtplugins/wrt/internal/platform/push"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "push"

const onNotification = "onnotification"

type module struct {
	env   *plugin.Env
	svc   *pushsvc.Service
	appID string

	conn *plugin.Slot
}

// Install builds the push object for env's page.
func Install(env *plugin.Env, svc *pushsvc.Service) *goja.Object {
	m := &module{env: env, svc: svc, conn: plugin.NewSlot(env)}
	if env.Guard != nil {
		m.appID = env.Guard.App().ID
	}

	obj := env.VM.NewObject()
	_ = obj.Set("registerService", m.registerService)
	_ = obj.Set("unregisterService", m.unregisterService)
	_ = obj.Set("connectService", func(call goja.FunctionCall) goja.Value {
		env.Check(access.Push)
		l := env.Listen(map[string]goja.Value{onNotification: call.Argument(0)},
			bridge.WithRequired(onNotification))
		m.connect(l)
		return goja.Undefined()
	})
	_ = obj.Set("disconnectService", func(goja.FunctionCall) goja.Value {
		env.Check(access.Push)
		m.conn.Clear()
		return goja.Undefined()
	})
	_ = obj.Set("getRegistrationId", func(goja.FunctionCall) goja.Value {
		env.Check(access.Push)
		id, ok := svc.RegistrationID(m.appID)
		if !ok {
			return goja.Null()
		}
		return env.Value(id)
	})
	return obj
}

// registerService(appControl, successCallback(registrationId), errorCallback?)
func (m *module) registerService(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Push)
	appControl, err := jsconv.Object(call.Argument(0), "appControl")
	env.Must(err)
	_, err = jsconv.String(appControl.Get("operation"), "appControl.operation")
	env.Must(err)

	l := env.Callbacks(call.Argument(1), call.Argument(2))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		id, err := m.svc.Register(ctx, m.appID)
		if err != nil {
			return nil, err
		}
		return bridge.Args(id), nil
	})
	return goja.Undefined()
}

// unregisterService(successCallback?, errorCallback?)
func (m *module) unregisterService(call goja.FunctionCall) goja.Value {
	env := m.env
	env.Check(access.Push)
	l := env.OptionalCallbacks(call.Argument(0), call.Argument(1))
	env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
		return nil, m.svc.Unregister(ctx, m.appID)
	})
	return goja.Undefined()
}

// connect replaces the page's connection with one delivering to l.
func (m *module) connect(l *bridge.Listener) {
	m.conn.Clear()
	m.conn.Set(l, m.svc.Connect(m.appID, func(msg pushsvc.Message) {
		l.Emit(onNotification, func(vm *goja.Runtime) ([]goja.Value, error) {
			o := vm.NewObject()
			_ = o.Set("appData", msg.AppData)
			_ = o.Set("alertMessage", msg.AlertMessage)
			_ = o.Set("date", jsconv.NewDate(vm, msg.Date))
			return []goja.Value{o}, nil
		})
	}))
}
