package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugin/plugintest"
)

// install exposes a tiny async API exercising Env.
func install(env *plugin.Env) *goja.Object {
	obj := env.VM.NewObject()
	_ = obj.Set("fetch", func(call goja.FunctionCall) goja.Value {
		env.Check(access.Notification)
		fail := call.Argument(0).ToBoolean()
		l := env.Callbacks(call.Argument(1), call.Argument(2))
		env.Async(l, func(ctx context.Context) (bridge.ArgsFunc, error) {
			if fail {
				return nil, apierr.New(apierr.NotFound, "nothing here")
			}
			return bridge.Args("payload"), nil
		})
		return goja.Undefined()
	})
	_ = obj.Set("secret", func(goja.FunctionCall) goja.Value {
		env.Check(access.Push)
		return goja.Undefined()
	})
	return obj
}

func TestEnv_AsyncSuccess(t *testing.T) {
	h := plugintest.New(t, access.Notification)
	h.Install("api", install)

	h.Run(`
		var ok = [], errs = [];
		api.fetch(false, function (v) { ok.push(v); }, function (e) { errs.push(e.name); });
	`)
	h.WaitFor(`ok.length === 1`)
	h.Settle()
	assert.Equal(t, "payload", h.Eval(`ok[0]`))
	assert.Equal(t, int64(0), h.Eval(`errs.length`))
}

func TestEnv_AsyncError(t *testing.T) {
	h := plugintest.New(t, access.Notification)
	h.Install("api", install)

	h.Run(`
		var ok = 0, err = "";
		api.fetch(true, function () { ok++; }, function (e) { err = e.name + ":" + e.message; });
	`)
	h.WaitFor(`err !== ""`)
	assert.Equal(t, "NotFoundError:nothing here", h.Eval(`err`))
	assert.Equal(t, int64(0), h.Eval(`ok`))
}

func TestEnv_ThrowsAtBoundary(t *testing.T) {
	h := plugintest.New(t, access.Notification)
	h.Install("api", install)

	assert.Equal(t, "SecurityError", h.Throws(`api.secret()`))
	assert.Equal(t, "TypeMismatchError", h.Throws(`api.fetch(false, 42)`))
	assert.Equal(t, "TypeMismatchError", h.Throws(`api.fetch(false)`))
}

func TestEnv_UnloadRunsCleanupsAndCancels(t *testing.T) {
	h := plugintest.New(t)
	var order []int
	var cancelled atomic.Bool
	h.Env.OnUnload(func() { order = append(order, 1) })
	h.Env.OnUnload(func() { order = append(order, 2) })
	h.Env.Go(func(ctx context.Context) {
		<-ctx.Done()
		cancelled.Store(errors.Is(ctx.Err(), context.Canceled))
	})

	h.Env.Unload()
	h.Env.Unload()

	assert.Equal(t, []int{2, 1}, order)
	assert.True(t, cancelled.Load())

	ran := false
	h.Env.OnUnload(func() { ran = true })
	assert.True(t, ran, "late cleanup runs immediately")
}
