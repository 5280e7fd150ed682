// Package plugins installs every device API plugin on a page.
package plugins

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/wrtplugins/wrt/internal/platform/device"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugins/bluetooth"
	"github.com/wrtplugins/wrt/internal/plugins/exif"
	"github.com/wrtplugins/wrt/internal/plugins/mediakey"
	"github.com/wrtplugins/wrt/internal/plugins/notification"
	"github.com/wrtplugins/wrt/internal/plugins/push"
	"github.com/wrtplugins/wrt/internal/plugins/sound"
	"github.com/wrtplugins/wrt/internal/plugins/systeminfo"
	"github.com/wrtplugins/wrt/internal/plugins/systemsetting"
)

// Global is the name of the global object plugins hang off.
const Global = "tizen"

// ModulePrefix prefixes the require() name of each plugin.
const ModulePrefix = "tizen/"

// Names lists the installed plugins in installation order.
var Names = []string{
	mediakey.Name,
	notification.Name,
	push.Name,
	sound.Name,
	systemsetting.Name,
	systeminfo.Name,
	bluetooth.Name,
	exif.Name,
}

// Install builds every plugin for env's page, binds them to the global
// tizen object, and registers each as require("tizen/<name>") in registry.
// It must run on the page's engine loop.
func Install(env *plugin.Env, dev *device.Device, registry *require.Registry) *goja.Object {
	vm := env.VM
	tizen := vm.NewObject()

	notificationObj, statusNotification := notification.Install(env, dev.Notification)
	objects := map[string]*goja.Object{
		mediakey.Name:      mediakey.Install(env, dev.MediaKey),
		notification.Name:  notificationObj,
		push.Name:          push.Install(env, dev.Push),
		sound.Name:         sound.Install(env, dev.Sound),
		systemsetting.Name: systemsetting.Install(env, dev.Settings),
		systeminfo.Name:    systeminfo.Install(env, dev.SystemInfo),
		bluetooth.Name:     bluetooth.Install(env, dev.Bluetooth),
		exif.Name:          exif.Install(env, dev.Exif),
	}
	_ = tizen.Set(notification.ConstructorName, statusNotification)

	for _, name := range Names {
		obj := objects[name]
		_ = tizen.DefineDataProperty(name, obj, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
		if registry != nil {
			registry.RegisterNativeModule(ModulePrefix+name, func(_ *goja.Runtime, module *goja.Object) {
				_ = module.Set("exports", obj)
			})
		}
	}
	if registry != nil {
		registry.RegisterNativeModule(ModulePrefix+notification.ConstructorName, func(_ *goja.Runtime, module *goja.Object) {
			_ = module.Set("exports", statusNotification)
		})
	}

	_ = vm.Set(Global, tizen)
	return tizen
}
