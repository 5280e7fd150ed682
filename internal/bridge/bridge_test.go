package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/gcontext"
	"github.com/wrtplugins/wrt/internal/jsengine"
)

// fakeLoop queues tasks until Drain runs them on a single VM, so tests control
// exactly when dispatch happens.
type fakeLoop struct {
	vm     *goja.Runtime
	mu     sync.Mutex
	tasks  []func(*goja.Runtime)
	closed bool
}

func newFakeLoop() *fakeLoop { return &fakeLoop{vm: goja.New()} }

func (f *fakeLoop) RunOnLoop(fn func(*goja.Runtime)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.tasks = append(f.tasks, fn)
	return true
}

func (f *fakeLoop) Drain() int {
	f.mu.Lock()
	tasks := f.tasks
	f.tasks = nil
	f.mu.Unlock()
	for _, fn := range tasks {
		fn(f.vm)
	}
	return len(tasks)
}

func (f *fakeLoop) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

type fixture struct {
	contexts *gcontext.Manager
	bridge   *Bridge
	loop     *fakeLoop
	ctx      gcontext.ID
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	contexts := gcontext.NewManager()
	b := New(contexts, slog.New(slog.NewTextHandler(logs, nil)))
	t.Cleanup(b.Close)
	return &fixture{
		contexts: contexts,
		bridge:   b,
		loop:     newFakeLoop(),
		ctx:      contexts.Add(),
		logs:     logs,
	}
}

// script evaluates code on the fixture VM and returns the value.
func (f *fixture) script(t *testing.T, code string) goja.Value {
	t.Helper()
	v, err := f.loop.vm.RunString(code)
	require.NoError(t, err)
	return v
}

func (f *fixture) listen(t *testing.T, code string, opts ...Option) *Listener {
	t.Helper()
	obj := f.script(t, code).ToObject(f.loop.vm)
	callbacks := make(map[string]goja.Value)
	for _, k := range obj.Keys() {
		callbacks[k] = obj.Get(k)
	}
	l, err := f.bridge.Listen(f.ctx, f.loop, callbacks, opts...)
	require.NoError(t, err)
	return l
}

func TestEmit_DeliversOnLoop(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var got = [];`)
	l := f.listen(t, `({ onchange: function (v, w) { got.push(v + ":" + w); } })`)

	assert.True(t, l.Emit("onchange", Args("a", 1)))
	assert.Equal(t, int64(0), f.script(t, `got.length`).ToInteger(), "nothing runs before the loop does")

	assert.Equal(t, 1, f.loop.Drain())
	assert.Equal(t, "a:1", f.script(t, `got.join(",")`).String())
	assert.Equal(t, Stats{Scheduled: 1, Delivered: 1}, f.bridge.Stats())
}

func TestEmit_FromManyGoroutines(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var n = 0;`)
	l := f.listen(t, `({ ontick: function () { n++; } })`)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit("ontick", nil)
		}()
	}
	wg.Wait()
	f.loop.Drain()
	assert.Equal(t, int64(50), f.script(t, `n`).ToInteger())
}

func TestDispatch_DeadContextDropsSilently(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var called = false;`)
	l := f.listen(t, `({ onchange: function () { called = true; } })`)

	require.True(t, l.Emit("onchange", nil))
	f.contexts.Remove(f.ctx)
	f.loop.Drain()

	assert.False(t, f.script(t, `called`).ToBoolean())
	assert.Equal(t, uint64(1), f.bridge.Stats().Dropped)
	assert.Empty(t, f.logs.String())
}

func TestContextRemoval_ReleasesListeners(t *testing.T) {
	f := newFixture(t)
	l := f.listen(t, `({ onchange: function () {} })`)
	other := f.contexts.Add()
	keep, err := f.bridge.Listen(other, f.loop, map[string]goja.Value{
		"onchange": f.script(t, `(function () {})`),
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.bridge.Len())

	f.contexts.Remove(f.ctx)

	assert.True(t, l.Released())
	assert.False(t, keep.Released())
	assert.Equal(t, 1, f.bridge.Len())
	assert.False(t, l.Emit("onchange", nil))
}

func TestRelease_BeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var called = false;`)
	l := f.listen(t, `({ onchange: function () { called = true; } })`)

	require.True(t, l.Emit("onchange", nil))
	l.Release()
	l.Release()
	f.loop.Drain()

	assert.False(t, f.script(t, `called`).ToBoolean())
	assert.False(t, l.Emit("onchange", nil))
	_, ok := f.bridge.Lookup(l.ID())
	assert.False(t, ok)
}

func TestOneShot_AtMostOneCallback(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var calls = [];`)
	l := f.listen(t, `({
		onsuccess: function () { calls.push("success"); },
		onerror: function (e) { calls.push(e.name); }
	})`, OneShot())

	assert.True(t, l.Emit(OnSuccess, nil))
	assert.False(t, l.EmitError(apierr.New(apierr.Unknown, "late")))
	assert.False(t, l.Emit(OnSuccess, nil))
	f.loop.Drain()

	assert.Equal(t, "success", f.script(t, `calls.join(",")`).String())
	assert.True(t, l.Released(), "one-shot listener releases after dispatch")
	assert.Equal(t, 0, f.bridge.Len())
}

func TestEmitLast_ReleasesAfterDispatch(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var events = [];`)
	l := f.listen(t, `({
		ondevicefound: function (d) { events.push("found:" + d); },
		onfinished: function () { events.push("finished"); }
	})`)

	assert.True(t, l.Emit("ondevicefound", Args("a")))
	assert.True(t, l.EmitLast("onfinished", nil))
	assert.False(t, l.Emit("ondevicefound", Args("late")), "refused after the last event")
	assert.False(t, l.Released(), "released only once the last event is dispatched")

	f.loop.Drain()
	assert.Equal(t, "found:a,finished", f.script(t, `events.join(",")`).String())
	assert.True(t, l.Released())
	assert.Equal(t, 0, f.bridge.Len())
}

func TestOneShot_ErrorPath(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var out = "";`)
	l := f.listen(t, `({
		onsuccess: function () { out = "success"; },
		onerror: function (e) { out = e.name + ":" + e.message; }
	})`, OneShot())

	require.True(t, l.EmitError(apierr.New(apierr.NotFound, "no such device")))
	f.loop.Drain()
	assert.Equal(t, "NotFoundError:no such device", f.script(t, `out`).String())
}

func TestOneShot_MissingCallbackStillReleases(t *testing.T) {
	f := newFixture(t)
	l := f.listen(t, `({ onsuccess: function () {} })`, OneShot())

	require.True(t, l.EmitError(errors.New("boom")))
	f.loop.Drain()

	assert.True(t, l.Released())
	assert.Equal(t, uint64(1), f.bridge.Stats().Dropped)
}

func TestDispatch_ExceptionIsLoggedAndSwallowed(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var after = false;`)
	l := f.listen(t, `({
		onchange: function () { throw new Error("kaboom"); },
		ondone: function () { after = true; }
	})`)

	l.Emit("onchange", nil)
	l.Emit("ondone", nil)
	f.loop.Drain()

	assert.True(t, f.script(t, `after`).ToBoolean(), "later callbacks still run")
	assert.Contains(t, f.logs.String(), "kaboom")
	st := f.bridge.Stats()
	assert.Equal(t, uint64(1), st.Failed)
	assert.Equal(t, uint64(1), st.Delivered)
}

func TestDispatch_ArgsErrorIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.script(t, `var called = false;`)
	l := f.listen(t, `({ onchange: function () { called = true; } })`)

	l.Emit("onchange", func(*goja.Runtime) ([]goja.Value, error) {
		return nil, errors.New("bad payload")
	})
	f.loop.Drain()

	assert.False(t, f.script(t, `called`).ToBoolean())
	assert.Contains(t, f.logs.String(), "bad payload")
}

func TestListen_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.bridge.Listen(f.ctx, f.loop, map[string]goja.Value{
		"onsuccess": f.loop.vm.ToValue(42),
	})
	assert.Equal(t, apierr.TypeMismatch, apierr.KindOf(err))

	l, err := f.bridge.Listen(f.ctx, f.loop, map[string]goja.Value{
		"onsuccess": f.script(t, `(function () {})`),
		"onerror":   goja.Null(),
		"onother":   goja.Undefined(),
	})
	require.NoError(t, err)
	assert.True(t, l.Has("onsuccess"))
	assert.False(t, l.Has("onerror"))

	_, err = f.bridge.Listen(f.ctx, f.loop, map[string]goja.Value{}, WithRequired(OnSuccess))
	assert.Equal(t, apierr.TypeMismatch, apierr.KindOf(err))

	f.contexts.Remove(f.ctx)
	_, err = f.bridge.Listen(f.ctx, f.loop, nil)
	assert.Equal(t, apierr.InvalidState, apierr.KindOf(err))
}

func TestEmit_LoopClosed(t *testing.T) {
	f := newFixture(t)
	l := f.listen(t, `({ onsuccess: function () {} })`, OneShot())
	f.loop.Close()

	assert.False(t, l.Emit(OnSuccess, nil))
	assert.True(t, l.Released())
	assert.Equal(t, Stats{Dropped: 1}, f.bridge.Stats())
}

func TestEmit_LoopClosedKeepsPersistentListener(t *testing.T) {
	f := newFixture(t)
	l := f.listen(t, `({ onchange: function () {} })`)
	f.loop.Close()

	assert.False(t, l.Emit("onchange", nil))
	assert.False(t, l.Released())
	assert.Equal(t, Stats{Dropped: 1}, f.bridge.Stats())
}

func TestBridge_WithEngine(t *testing.T) {
	rt, err := jsengine.NewRuntime(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer rt.Close()

	contexts := gcontext.NewManager()
	b := New(contexts, nil)
	defer b.Close()
	ctx := contexts.Add()

	done := make(chan string, 1)
	require.NoError(t, rt.SetGlobal("report", func(s string) { done <- s }))

	var l *Listener
	require.NoError(t, rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		fn, err := vm.RunString(`(function (level) { report("battery " + level); })`)
		if err != nil {
			return err
		}
		l, err = b.Listen(ctx, rt, map[string]goja.Value{"onchange": fn})
		return err
	}))

	go l.Emit("onchange", Args(0.5))

	select {
	case got := <-done:
		assert.Equal(t, "battery 0.5", got)
	case <-time.After(time.Second):
		t.Fatal("callback was not delivered")
	}
}
