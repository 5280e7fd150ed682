// Package jsengine runs one page's script engine on its own event loop.
//
// goja.Runtime is not goroutine-safe. Every access goes through the loop:
// RunOnLoop from anywhere, RunOnLoopSync to wait for a result, or
// TryRunOnLoopSync when the caller may already be on the loop goroutine.
package jsengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/wrtplugins/wrt/internal/goroutineid"
)

// DefaultSyncTimeout bounds RunOnLoopSync unless changed with SetTimeout.
const DefaultSyncTimeout = 5 * time.Second

// ErrNotRunning is returned when work is submitted to a closed runtime.
var ErrNotRunning = errors.New("event loop not running")

// Runtime owns a goja event loop and the require registry its scripts load
// native modules from.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	logger   *slog.Logger

	timeout time.Duration
	loopID  atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool

	// ctx is independent of the parent so that Done() is only closed by
	// Close, after stopped is set.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime starts a runtime with a fresh registry. Cancelling ctx closes it.
func NewRuntime(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	return NewRuntimeWithRegistry(ctx, logger, nil)
}

// NewRuntimeWithRegistry starts a runtime using registry, creating one if nil.
// console.* output from scripts is written to logger. Go structs passed to
// scripts expose their json-tagged fields under the tag names.
func NewRuntimeWithRegistry(ctx context.Context, logger *slog.Logger, registry *require.Registry) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = require.NewRegistry()
	}
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(consolePrinter{logger: logger}))

	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(false),
	)

	childCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		registry: registry,
		logger:   logger,
		timeout:  DefaultSyncTimeout,
		ctx:      childCtx,
		cancel:   cancel,
	}

	loop.Start()
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	ready := make(chan struct{})
	if !loop.RunOnLoop(func(vm *goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		console.Enable(vm)
		close(ready)
	}) {
		cancel()
		return nil, fmt.Errorf("failed to initialize runtime: %w", ErrNotRunning)
	}
	<-ready

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { _ = rt.Close() })
	}
	return rt, nil
}

// Registry returns the registry used by require().
func (rt *Runtime) Registry() *require.Registry { return rt.registry }

// Close stops the loop, waiting for the job in progress. Idempotent.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.cancel()
	rt.mu.Unlock()

	// Stop waits for the loop goroutine, which would deadlock on itself.
	if rt.OnLoop() {
		rt.loop.StopNoWait()
		return nil
	}
	rt.loop.Stop()
	return nil
}

// Done is closed once Close has been called.
func (rt *Runtime) Done() <-chan struct{} { return rt.ctx.Done() }

// IsRunning reports whether the runtime accepts work.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// SetTimeout changes the RunOnLoopSync timeout. Zero disables it.
func (rt *Runtime) SetTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (rt *Runtime) OnLoop() bool {
	id := rt.loopID.Load()
	return id > 0 && id == goroutineid.Get()
}

// RunOnLoop queues fn on the loop. It returns false if the runtime is closed,
// in which case fn will never run.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for its result, the runtime
// closing, or the timeout.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return ErrNotRunning
	}
	timeout := rt.timeout
	rt.mu.RUnlock()

	errCh := make(chan error, 1)
	if !rt.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return ErrNotRunning
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-expired:
		rt.logger.Warn("[Engine] RunOnLoopSync timed out", "timeout", timeout)
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// TryRunOnLoopSync runs fn directly when called from the loop goroutine
// (using currentVM) and otherwise behaves like RunOnLoopSync.
func (rt *Runtime) TryRunOnLoopSync(currentVM *goja.Runtime, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return ErrNotRunning
	}
	if currentVM != nil && rt.OnLoop() {
		return fn(currentVM)
	}
	return rt.RunOnLoopSync(fn)
}

// LoadScript compiles and runs code under the given name.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// Eval runs code and returns its exported completion value.
func (rt *Runtime) Eval(code string) (any, error) {
	var out any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		v, err := vm.RunString(code)
		if err != nil {
			return err
		}
		if v != nil && !goja.IsUndefined(v) {
			out = v.Export()
		}
		return nil
	})
	return out, err
}

// SetGlobal sets a global variable.
func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal returns the exported value of a global, or nil if it is
// undefined or null.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			return nil
		}
		result = val.Export()
		return nil
	})
	return result, err
}

type consolePrinter struct {
	logger *slog.Logger
}

func (p consolePrinter) Log(s string)   { p.logger.Info(s, "source", "console") }
func (p consolePrinter) Warn(s string)  { p.logger.Warn(s, "source", "console") }
func (p consolePrinter) Error(s string) { p.logger.Error(s, "source", "console") }
