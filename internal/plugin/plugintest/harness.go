// Package plugintest runs a plugin on a real page engine for tests.
package plugintest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/gcontext"
	"github.com/wrtplugins/wrt/internal/jsengine"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/testutil"
)

// Harness is one page with an Env whose app declares the privileges of the
// features it was created with. The policy permits everything declared.
type Harness struct {
	T        testing.TB
	Engine   *jsengine.Runtime
	Contexts *gcontext.Manager
	Bridge   *bridge.Bridge
	Env      *plugin.Env
}

// New builds a harness. The page unloads when the test ends.
func New(t testing.TB, features ...string) *Harness {
	t.Helper()
	app := access.App{ID: testutil.NewTestAppID(t.Name()), Name: "test"}
	for _, name := range features {
		f, ok := access.Lookup(name)
		if !ok {
			t.Fatalf("unknown feature %q", name)
		}
		app.Privileges = append(app.Privileges, f.Privilege)
	}
	checker, err := access.NewChecker(access.Policy{Default: access.Permit}, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	h := &Harness{
		T:        t,
		Engine:   testutil.NewEngine(t),
		Contexts: gcontext.NewManager(),
	}
	h.Bridge = bridge.New(h.Contexts, testutil.DiscardLogger())
	ctxID := h.Contexts.Add()

	if err := h.Engine.RunOnLoopSync(func(vm *goja.Runtime) error {
		h.Env = plugin.NewEnv(context.Background(), plugin.Config{
			VM:        vm,
			Context:   ctxID,
			Scheduler: h.Engine,
			Bridge:    h.Bridge,
			Guard:     access.NewGuard(checker, app),
			Logger:    testutil.DiscardLogger(),
		})
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Unload)
	return h
}

// Install runs install on the loop and binds its result to the global name.
func (h *Harness) Install(name string, install func(env *plugin.Env) *goja.Object) {
	h.T.Helper()
	if err := h.Engine.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, install(h.Env))
	}); err != nil {
		h.T.Fatalf("install %s: %v", name, err)
	}
}

// Run executes code, failing the test on error.
func (h *Harness) Run(code string) {
	h.T.Helper()
	if err := h.Engine.LoadScript(h.T.Name(), code); err != nil {
		h.T.Fatalf("script failed: %v", err)
	}
}

// Eval returns the exported completion value of code.
func (h *Harness) Eval(code string) any {
	h.T.Helper()
	v, err := h.Engine.Eval(code)
	if err != nil {
		h.T.Fatalf("eval %q: %v", code, err)
	}
	return v
}

// Throws runs code and returns the name of the exception it throws, or "" if
// it completes normally.
func (h *Harness) Throws(code string) string {
	h.T.Helper()
	v, err := h.Engine.Eval(`(function () { try { ` + code + `; return ""; } catch (e) { return e.name; } })()`)
	if err != nil {
		h.T.Fatalf("eval %q: %v", code, err)
	}
	s, _ := v.(string)
	return s
}

// WaitFor polls until the script expression cond is truthy.
func (h *Harness) WaitFor(cond string) {
	h.T.Helper()
	testutil.Eventually(h.T, func() bool {
		v, err := h.Engine.Eval(`!!(` + cond + `)`)
		return err == nil && v == true
	}, "waiting for "+cond)
}

// Settle waits for work already queued on the loop and a quiet period.
func (h *Harness) Settle() {
	h.T.Helper()
	time.Sleep(testutil.QuietPeriod)
	if err := h.Engine.RunOnLoopSync(func(*goja.Runtime) error { return nil }); err != nil && !errors.Is(err, jsengine.ErrNotRunning) {
		h.T.Fatal(err)
	}
}

// Unload tears the page down the way the host does.
func (h *Harness) Unload() {
	if h.Env == nil {
		return
	}
	h.Contexts.Remove(h.Env.Context)
	h.Env.Unload()
	h.Bridge.Close()
	_ = h.Engine.Close()
}
