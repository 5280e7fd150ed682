// Package systemsetting exposes wallpaper and ringtone settings as
// tizen.systemsetting.
package systemsetting

import (
	"context"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	settingsvc "github.com/wrtplugins/wrt/internal/platform/systemsetting"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "systemsetting"

// Install builds the systemsetting object for env's page.
func Install(env *plugin.Env, svc *settingsvc.Service) *goja.Object {
	settingType := func(v goja.Value) settingsvc.Type {
		name, err := jsconv.Enum(v, "type", settingsvc.Types)
		env.Must(err)
		return settingsvc.Type(name)
	}

	obj := env.VM.NewObject()

	// setProperty(type, value, successCallback, errorCallback?)
	_ = obj.Set("setProperty", func(call goja.FunctionCall) goja.Value {
		env.Check(access.Setting)
		t := settingType(call.Argument(0))
		value, err := jsconv.String(call.Argument(1), "value")
		env.Must(err)
		l := env.Callbacks(call.Argument(2), call.Argument(3))
		env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
			return nil, svc.Set(ctx, t, value)
		})
		return goja.Undefined()
	})

	// getProperty(type, successCallback(value), errorCallback?)
	_ = obj.Set("getProperty", func(call goja.FunctionCall) goja.Value {
		env.Check(access.Setting)
		t := settingType(call.Argument(0))
		l := env.Callbacks(call.Argument(1), call.Argument(2))
		env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
			v, err := svc.Get(ctx, t)
			if err != nil {
				return nil, err
			}
			return bridge.Args(v), nil
		})
		return goja.Undefined()
	})

	return obj
}
