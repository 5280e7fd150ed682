// Package plugin holds what every device API plugin needs while installed on
// one page: the VM, the page's context ID and scheduler, the callback bridge,
// the access guard, and cleanup for platform subscriptions.
//
// Methods that throw (Check, Throw, Listen, Callbacks) must only be called
// from native functions running on the page's engine loop.
package plugin

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/gcontext"
)

// Env is a page's plugin environment.
type Env struct {
	VM        *goja.Runtime
	Context   gcontext.ID
	Scheduler bridge.Scheduler
	Bridge    *bridge.Bridge
	Guard     *access.Guard
	Logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	cleanups []func()
	unloaded bool
}

// Config carries the collaborators of a new Env.
type Config struct {
	VM        *goja.Runtime
	Context   gcontext.ID
	Scheduler bridge.Scheduler
	Bridge    *bridge.Bridge
	Guard     *access.Guard
	Logger    *slog.Logger
}

// NewEnv returns an Env whose Ctx is derived from parent and cancelled on
// Unload.
func NewEnv(parent context.Context, cfg Config) *Env {
	ctx, cancel := context.WithCancel(parent)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		VM:        cfg.VM,
		Context:   cfg.Context,
		Scheduler: cfg.Scheduler,
		Bridge:    cfg.Bridge,
		Guard:     cfg.Guard,
		Logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Ctx is cancelled when the page unloads.
func (e *Env) Ctx() context.Context { return e.ctx }

// Throw raises err as a WebAPIException. It never returns.
func (e *Env) Throw(err error) {
	apierr.Throw(e.VM, err)
}

// Must throws err if it is non-nil.
func (e *Env) Must(err error) {
	if err != nil {
		e.Throw(err)
	}
}

// Check throws a SecurityError unless the page's app may use feature.
func (e *Env) Check(feature string) {
	if e.Guard == nil {
		return
	}
	if err := e.Guard.Check(feature); err != nil {
		e.Logger.Info("[Access] denied", "feature", feature, "app", e.Guard.App().ID)
		e.Throw(err)
	}
}

// Listen registers callbacks on this page's context, throwing on invalid
// values.
func (e *Env) Listen(callbacks map[string]goja.Value, opts ...bridge.Option) *bridge.Listener {
	l, err := e.Bridge.Listen(e.Context, e.Scheduler, callbacks, opts...)
	e.Must(err)
	return l
}

// Callbacks registers a one-shot success/error pair. successCallback is
// required; errorCallback may be nullish.
func (e *Env) Callbacks(successCallback, errorCallback goja.Value) *bridge.Listener {
	return e.Listen(map[string]goja.Value{
		bridge.OnSuccess: successCallback,
		bridge.OnError:   errorCallback,
	}, bridge.OneShot(), bridge.WithRequired(bridge.OnSuccess))
}

// OptionalCallbacks is Callbacks with both callbacks optional.
func (e *Env) OptionalCallbacks(successCallback, errorCallback goja.Value) *bridge.Listener {
	return e.Listen(map[string]goja.Value{
		bridge.OnSuccess: successCallback,
		bridge.OnError:   errorCallback,
	}, bridge.OneShot())
}

// Succeed delivers args to the listener's onsuccess callback.
func (e *Env) Succeed(l *bridge.Listener, args bridge.ArgsFunc) {
	l.Emit(bridge.OnSuccess, args)
}

// Fail delivers err to the listener's onerror callback, logging it when the
// script supplied none.
func (e *Env) Fail(l *bridge.Listener, err error) {
	if !l.Has(bridge.OnError) {
		e.Logger.Warn("[Plugin] unhandled asynchronous error", "error", err)
	}
	l.EmitError(err)
}

// Async runs fn off the engine loop and completes the one-shot listener l
// with its result. fn receives Ctx and must honour its cancellation.
func (e *Env) Async(l *bridge.Listener, fn func(ctx context.Context) (bridge.ArgsFunc, error)) {
	e.Go(func(ctx context.Context) {
		args, err := fn(ctx)
		if err != nil {
			e.Fail(l, err)
			return
		}
		e.Succeed(l, args)
	})
}

// Go runs fn on a new goroutine tracked until Unload.
func (e *Env) Go(fn func(ctx context.Context)) {
	e.mu.Lock()
	if e.unloaded {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

// OnUnload registers fn to run when the page unloads. Functions run in
// reverse registration order. Called after Unload, fn runs immediately.
func (e *Env) OnUnload(fn func()) {
	e.mu.Lock()
	if e.unloaded {
		e.mu.Unlock()
		fn()
		return
	}
	e.cleanups = append(e.cleanups, fn)
	e.mu.Unlock()
}

// Unload cancels Ctx, runs cleanup functions and waits for goroutines started
// with Go. Idempotent. It must not be called from the engine loop while a Go
// goroutine is blocked on it.
func (e *Env) Unload() {
	e.mu.Lock()
	if e.unloaded {
		e.mu.Unlock()
		return
	}
	e.unloaded = true
	cleanups := e.cleanups
	e.cleanups = nil
	e.mu.Unlock()

	e.cancel()
	for _, fn := range slices.Backward(cleanups) {
		fn()
	}
	e.wg.Wait()
}

// Value converts v in the page's VM.
func (e *Env) Value(v any) goja.Value { return e.VM.ToValue(v) }
