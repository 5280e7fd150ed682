// Package host runs widgets: it owns what the plugins of a widget share (the
// callback bridge, the context registry, the access guard) and loads the
// widget's pages, each on its own engine.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/access"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/gcontext"
	"github.com/wrtplugins/wrt/internal/jsengine"
	"github.com/wrtplugins/wrt/internal/manifest"
	"github.com/wrtplugins/wrt/internal/platform/device"
	"github.com/wrtplugins/wrt/internal/plugin"
	"github.com/wrtplugins/wrt/internal/plugins"
)

// ErrStopped is returned when loading a page on a stopped widget.
var ErrStopped = errors.New("widget stopped")

// Options configures a widget.
type Options struct {
	Manifest *manifest.Manifest
	Device   *device.Device
	Policy   access.Policy
	Logger   *slog.Logger
	// SyncTimeout bounds synchronous calls into a page engine. Zero uses
	// jsengine.DefaultSyncTimeout.
	SyncTimeout time.Duration
}

// Widget is a running widget.
type Widget struct {
	manifest    *manifest.Manifest
	device      *device.Device
	contexts    *gcontext.Manager
	bridge      *bridge.Bridge
	guard       *access.Guard
	logger      *slog.Logger
	syncTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pages   []*Page
	stopped bool
}

// Start starts a widget. Cancelling ctx stops it.
func Start(ctx context.Context, opts Options) (*Widget, error) {
	if opts.Manifest == nil || opts.Device == nil {
		return nil, errors.New("host: manifest and device are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("widget", opts.Manifest.ID)

	checker, err := access.NewChecker(opts.Policy, logger)
	if err != nil {
		return nil, fmt.Errorf("access policy: %w", err)
	}
	syncTimeout := opts.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = jsengine.DefaultSyncTimeout
	}

	contexts := gcontext.NewManager()
	w := &Widget{
		manifest:    opts.Manifest,
		device:      opts.Device,
		contexts:    contexts,
		bridge:      bridge.New(contexts, logger),
		guard:       access.NewGuard(checker, opts.Manifest.App()),
		logger:      logger,
		syncTimeout: syncTimeout,
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, w.Stop)
		context.AfterFunc(w.ctx, func() { stop() })
	}
	logger.Info("[Host] widget started", "name", opts.Manifest.Name, "version", opts.Manifest.Version)
	return w, nil
}

// Manifest returns the widget's manifest.
func (w *Widget) Manifest() *manifest.Manifest { return w.manifest }

// Device returns the device the widget runs on.
func (w *Widget) Device() *device.Device { return w.device }

// Bridge returns the widget's callback bridge.
func (w *Widget) Bridge() *bridge.Bridge { return w.bridge }

// Done is closed once the widget has stopped.
func (w *Widget) Done() <-chan struct{} { return w.ctx.Done() }

// Idle reports whether no page has a pending callback.
func (w *Widget) Idle() bool { return w.bridge.Len() == 0 }

// Pages returns the loaded pages.
func (w *Widget) Pages() []*Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.pages)
}

// LoadPage creates a page with every plugin installed.
func (w *Widget) LoadPage(name string) (*Page, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrStopped
	}
	w.mu.Unlock()

	logger := w.logger.With("page", name)
	engine, err := jsengine.NewRuntime(w.ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", name, err)
	}
	engine.SetTimeout(w.syncTimeout)

	p := &Page{
		name:    name,
		widget:  w,
		context: w.contexts.Add(),
		engine:  engine,
		logger:  logger,
	}
	if err := engine.RunOnLoopSync(func(vm *goja.Runtime) error {
		p.env = plugin.NewEnv(w.ctx, plugin.Config{
			VM:        vm,
			Context:   p.context,
			Scheduler: engine,
			Bridge:    w.bridge,
			Guard:     w.guard,
			Logger:    logger,
		})
		plugins.Install(p.env, w.device, engine.Registry())
		return nil
	}); err != nil {
		w.contexts.Remove(p.context)
		_ = engine.Close()
		return nil, fmt.Errorf("page %s: installing plugins: %w", name, err)
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		p.Unload()
		return nil, ErrStopped
	}
	w.pages = append(w.pages, p)
	w.mu.Unlock()

	logger.Debug("[Host] page loaded", "context", p.context)
	return p, nil
}

func (w *Widget) forget(p *Page) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages = slices.DeleteFunc(w.pages, func(q *Page) bool { return q == p })
}

// Stop unloads every page and releases the bridge. Idempotent.
func (w *Widget) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	pages := w.pages
	w.pages = nil
	w.mu.Unlock()

	for _, p := range pages {
		p.Unload()
	}
	w.bridge.Close()
	w.cancel()

	st := w.bridge.Stats()
	w.logger.Info("[Host] widget stopped",
		"scheduled", st.Scheduled, "delivered", st.Delivered, "dropped", st.Dropped, "failed", st.Failed)
}

// Page is one loaded document of a widget.
type Page struct {
	name    string
	widget  *Widget
	context gcontext.ID
	engine  *jsengine.Runtime
	env     *plugin.Env
	logger  *slog.Logger

	once sync.Once
}

// Name returns the page name.
func (p *Page) Name() string { return p.name }

// Context returns the page's context ID.
func (p *Page) Context() gcontext.ID { return p.context }

// Engine returns the page's engine.
func (p *Page) Engine() *jsengine.Runtime { return p.engine }

// Alive reports whether the page is still loaded.
func (p *Page) Alive() bool { return p.widget.contexts.IsAlive(p.context) }

// RunScript runs src on the page.
func (p *Page) RunScript(name, src string) error {
	return p.engine.LoadScript(name, src)
}

// RunFile runs the script at path on the page.
func (p *Page) RunFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return p.RunScript(path, string(src))
}

// Eval runs code and returns its exported completion value.
func (p *Page) Eval(code string) (any, error) {
	return p.engine.Eval(code)
}

// Unload removes the page's context, which drops its listeners, cancels its
// platform subscriptions and blocking calls, and closes its engine.
// Idempotent. It must not be called from the page's own engine loop.
func (p *Page) Unload() {
	p.once.Do(func() {
		p.widget.contexts.Remove(p.context)
		p.env.Unload()
		_ = p.engine.Close()
		p.widget.forget(p)
		p.logger.Debug("[Host] page unloaded", "context", p.context)
	})
}
