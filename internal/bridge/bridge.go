// Package bridge delivers events raised by platform services to script
// callbacks, safely and at most once per event.
//
// Platform services run their callbacks on arbitrary goroutines. They must not
// touch script values there. Instead they Emit on a Listener, which packages
// the event as an invocation and schedules it onto the owning page's engine
// loop. Dispatch happens on that loop and checks, in order:
//
//  1. the listener's global context is still alive,
//  2. the listener has not been released,
//  3. the named callback exists.
//
// Any failed check drops the invocation silently. Exceptions thrown by the
// callback, and errors building its arguments, are logged and swallowed. The
// invocation record is released in every case.
//
// Listener states:
//
//	Registered --Emit--> Pending --dispatch--> Delivered
//	                             \-----------> Dropped (context dead, released)
//	Registered --Release--> Unregistered
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/wrtplugins/wrt/internal/apierr"
	"github.com/wrtplugins/wrt/internal/gcontext"
)

// Scheduler queues work onto a page's engine loop. It returns false if the
// work will never run. *jsengine.Runtime implements it.
type Scheduler interface {
	RunOnLoop(fn func(*goja.Runtime)) bool
}

// ArgsFunc builds callback arguments on the engine loop. It is the only place
// event payloads are converted to script values.
type ArgsFunc func(vm *goja.Runtime) ([]goja.Value, error)

// Args returns an ArgsFunc converting each value with vm.ToValue.
func Args(values ...any) ArgsFunc {
	return func(vm *goja.Runtime) ([]goja.Value, error) {
		out := make([]goja.Value, len(values))
		for i, v := range values {
			out[i] = vm.ToValue(v)
		}
		return out, nil
	}
}

// Stats counts invocations by outcome.
type Stats struct {
	Scheduled uint64
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Bridge owns every listener of a widget. One Bridge serves many pages; each
// listener is bound to the page context it was registered from.
type Bridge struct {
	contexts *gcontext.Manager
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[string]*Listener

	scheduled atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	stopObserving func()
}

// New returns a bridge that consults contexts for liveness and releases a
// context's listeners when it is removed.
func New(contexts *gcontext.Manager, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		contexts:  contexts,
		logger:    logger,
		listeners: make(map[string]*Listener),
	}
	b.stopObserving = contexts.OnRemove(b.releaseContext)
	return b
}

// Close releases every listener and stops observing context removal.
func (b *Bridge) Close() {
	b.stopObserving()
	for _, l := range b.snapshot(func(*Listener) bool { return true }) {
		l.Release()
	}
}

// Stats returns a snapshot of the invocation counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Scheduled: b.scheduled.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Failed:    b.failed.Load(),
	}
}

// Len returns the number of registered listeners.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Lookup returns a registered listener by ID.
func (b *Bridge) Lookup(id string) (*Listener, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.listeners[id]
	return l, ok
}

// Option configures a listener.
type Option func(*Listener)

// OneShot makes the listener accept a single Emit across all its names and
// release itself once that invocation completes. Success/error callback pairs
// use it.
func OneShot() Option {
	return func(l *Listener) { l.oneShot = true }
}

// WithRequired lists callback names that must be present.
func WithRequired(names ...string) Option {
	return func(l *Listener) { l.required = append(l.required, names...) }
}

// Listen registers callbacks for ctx. It must be called on the engine loop of
// that context. Values that are undefined or null are skipped; any other
// non-function value is a TypeMismatchError. The callables stay reachable,
// and so protected from collection, until the listener is released.
func (b *Bridge) Listen(ctx gcontext.ID, sched Scheduler, callbacks map[string]goja.Value, opts ...Option) (*Listener, error) {
	if !b.contexts.IsAlive(ctx) {
		return nil, apierr.New(apierr.InvalidState, "context %d is not alive", ctx)
	}
	l := &Listener{
		id:        uuid.NewString(),
		bridge:    b,
		ctx:       ctx,
		sched:     sched,
		callbacks: make(map[string]goja.Callable, len(callbacks)),
	}
	for _, opt := range opts {
		opt(l)
	}
	for name, v := range callbacks {
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return nil, apierr.New(apierr.TypeMismatch, "%s is not a function", name)
		}
		l.callbacks[name] = fn
	}
	for _, name := range l.required {
		if _, ok := l.callbacks[name]; !ok {
			return nil, apierr.New(apierr.TypeMismatch, "%s is required", name)
		}
	}

	b.mu.Lock()
	b.listeners[l.id] = l
	b.mu.Unlock()
	return l, nil
}

func (b *Bridge) releaseContext(ctx gcontext.ID) {
	ls := b.snapshot(func(l *Listener) bool { return l.ctx == ctx })
	for _, l := range ls {
		l.Release()
	}
	if len(ls) > 0 {
		b.logger.Debug("[Bridge] released listeners of removed context", "context", ctx, "count", len(ls))
	}
}

func (b *Bridge) snapshot(match func(*Listener) bool) []*Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		if match(l) {
			out = append(out, l)
		}
	}
	return out
}

func (b *Bridge) forget(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l.id)
	b.mu.Unlock()
}

// Listener is a registered set of named script callbacks.
type Listener struct {
	id       string
	bridge   *Bridge
	ctx      gcontext.ID
	sched    Scheduler
	oneShot  bool
	required []string

	mu        sync.Mutex
	callbacks map[string]goja.Callable // nil once released
	closed    bool                     // a final invocation was scheduled
}

// ID returns the listener's unique ID.
func (l *Listener) ID() string { return l.id }

// Context returns the global context the listener belongs to.
func (l *Listener) Context() gcontext.ID { return l.ctx }

// Has reports whether the listener has a callback for name.
func (l *Listener) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.callbacks[name]
	return ok
}

// Released reports whether the listener has been released.
func (l *Listener) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callbacks == nil
}

// Release unregisters the listener and drops its callback references.
// Invocations already pending are dropped at dispatch. Idempotent.
func (l *Listener) Release() {
	l.mu.Lock()
	if l.callbacks == nil {
		l.mu.Unlock()
		return
	}
	l.callbacks = nil
	l.mu.Unlock()
	l.bridge.forget(l)
}

// Emit schedules callback name with args onto the listener's engine loop. It
// is safe to call from any goroutine and never touches script values. It
// returns false when nothing was scheduled: the listener is released, a
// final invocation was already scheduled, or the loop refused the work.
func (l *Listener) Emit(name string, args ArgsFunc) bool {
	return l.emit(name, args, l.oneShot)
}

// EmitLast is Emit for the last event of a listener, such as a discovery's
// onfinished. Later Emits are refused and the listener releases itself once
// this invocation completes.
func (l *Listener) EmitLast(name string, args ArgsFunc) bool {
	return l.emit(name, args, true)
}

func (l *Listener) emit(name string, args ArgsFunc, last bool) bool {
	b := l.bridge
	l.mu.Lock()
	if l.callbacks == nil || l.closed {
		l.mu.Unlock()
		b.dropped.Add(1)
		return false
	}
	if last {
		l.closed = true
	}
	l.mu.Unlock()

	inv := &invocation{listener: l, name: name, args: args, last: last}
	// Counted before posting: dispatch may finish before RunOnLoop returns.
	b.scheduled.Add(1)
	if !l.sched.RunOnLoop(func(vm *goja.Runtime) { b.dispatch(vm, inv) }) {
		b.scheduled.Add(^uint64(0))
		b.dropped.Add(1)
		inv.release()
		return false
	}
	return true
}

// EmitError is shorthand for emitting an error object to the "onerror"
// callback.
func (l *Listener) EmitError(err error) bool {
	return l.Emit(OnError, func(vm *goja.Runtime) ([]goja.Value, error) {
		return []goja.Value{apierr.ToJS(vm, err)}, nil
	})
}

// Common callback names.
const (
	OnSuccess = "onsuccess"
	OnError   = "onerror"
)

type invocation struct {
	listener *Listener
	name     string
	args     ArgsFunc
	last     bool
}

// release frees the invocation and, for a final invocation, the listener.
func (inv *invocation) release() {
	if inv.listener != nil && inv.last {
		inv.listener.Release()
	}
	inv.listener = nil
	inv.args = nil
}

func (b *Bridge) dispatch(vm *goja.Runtime, inv *invocation) {
	defer inv.release()
	l := inv.listener

	if !b.contexts.IsAlive(l.ctx) {
		b.dropped.Add(1)
		return
	}

	l.mu.Lock()
	fn, ok := l.callbacks[inv.name]
	l.mu.Unlock()
	if !ok {
		// Released, or the script did not supply this callback.
		b.dropped.Add(1)
		return
	}

	if err := b.invoke(vm, fn, inv); err != nil {
		b.failed.Add(1)
		b.logger.Warn("[Bridge] callback failed", "callback", inv.name, "listener", l.id, "error", err)
		return
	}
	b.delivered.Add(1)
}

func (b *Bridge) invoke(vm *goja.Runtime, fn goja.Callable, inv *invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in callback: %v", r)
		}
	}()
	var args []goja.Value
	if inv.args != nil {
		args, err = inv.args(vm)
		if err != nil {
			return fmt.Errorf("marshal arguments: %w", err)
		}
	}
	if _, err := fn(goja.Undefined(), args...); err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return fmt.Errorf("uncaught exception: %s", ex.Value())
		}
		return err
	}
	return nil
}
