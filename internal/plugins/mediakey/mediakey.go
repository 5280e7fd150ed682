// Package mediakey exposes hardware media key events to scripts as
// tizen.mediakey.
package mediakey

import (
	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
	mediakeysvc "github.com/wrtplugins/wrt/internal/platform/mediakey"
	"github.com/wrtplugins/wrt/internal/plugin"
)

// Name is the property and module name of the plugin.
const Name = "mediakey"

const (
	onPressed  = "onpressed"
	onReleased = "onreleased"
)

// Install builds the mediakey object for env's page.
func Install(env *plugin.Env, svc *mediakeysvc.Service) *goja.Object {
	slot := plugin.NewSlot(env)
	obj := env.VM.NewObject()

	// setMediaKeyEventListener({onpressed(type), onreleased(type)})
	// The platform allows one listener per application; a new one replaces
	// the old.
	_ = obj.Set("setMediaKeyEventListener", func(call goja.FunctionCall) goja.Value {
		env.Check(access.MediaKey)
		cb, err := jsconv.Object(call.Argument(0), "callback")
		env.Must(err)
		l := env.Listen(jsconv.Callbacks(cb, onPressed, onReleased),
			bridge.WithRequired(onPressed, onReleased))
		slot.Set(l, svc.Subscribe(func(ev mediakeysvc.Event) {
			name := onPressed
			if ev.Status == mediakeysvc.Released {
				name = onReleased
			}
			l.Emit(name, bridge.Args(ev.Key.String()))
		}))
		return goja.Undefined()
	})

	_ = obj.Set("unsetMediaKeyEventListener", func(goja.FunctionCall) goja.Value {
		env.Check(access.MediaKey)
		slot.Clear()
		return goja.Undefined()
	})

	return obj
}
