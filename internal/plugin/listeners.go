package plugin

import (
	"sync"

	"github.com/dop251/goja"
	"github.com/wrtplugins/wrt/internal/bridge"
	"github.com/wrtplugins/wrt/internal/jsconv"
)

// Slot holds the single listener of a set/unset pair, e.g.
// setSoundModeListener. Setting a new listener releases the previous one.
type Slot struct {
	mu       sync.Mutex
	listener *bridge.Listener
	cancel   func()
}

// NewSlot returns a Slot cleared when env unloads.
func NewSlot(env *Env) *Slot {
	s := &Slot{}
	env.OnUnload(s.Clear)
	return s
}

// Set installs l, whose platform subscription is undone by cancel.
func (s *Slot) Set(l *bridge.Listener, cancel func()) {
	s.mu.Lock()
	old, oldCancel := s.listener, s.cancel
	s.listener, s.cancel = l, cancel
	s.mu.Unlock()
	release(old, oldCancel)
}

// Clear releases the current listener, if any.
func (s *Slot) Clear() {
	s.mu.Lock()
	l, cancel := s.listener, s.cancel
	s.listener, s.cancel = nil, nil
	s.mu.Unlock()
	release(l, cancel)
}

// Active reports whether a listener is set.
func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Watches holds listeners registered by ID, as add/remove...Listener pairs
// do. IDs start at 1 and are never reused within a page.
type Watches struct {
	mu      sync.Mutex
	next    int64
	entries map[int64]watch
}

type watch struct {
	listener *bridge.Listener
	cancel   func()
}

// NewWatches returns a Watches cleared when env unloads.
func NewWatches(env *Env) *Watches {
	w := &Watches{entries: make(map[int64]watch)}
	env.OnUnload(w.Clear)
	return w
}

// Add registers l and returns its ID.
func (w *Watches) Add(l *bridge.Listener, cancel func()) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	w.entries[w.next] = watch{listener: l, cancel: cancel}
	return w.next
}

// Remove releases the listener with id. It reports false for unknown IDs.
func (w *Watches) Remove(id int64) bool {
	w.mu.Lock()
	e, ok := w.entries[id]
	delete(w.entries, id)
	w.mu.Unlock()
	if ok {
		release(e.listener, e.cancel)
	}
	return ok
}

// Clear releases every listener.
func (w *Watches) Clear() {
	w.mu.Lock()
	entries := w.entries
	w.entries = make(map[int64]watch)
	w.mu.Unlock()
	for _, e := range entries {
		release(e.listener, e.cancel)
	}
}

// Len returns the number of registered listeners.
func (w *Watches) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// WatchID reads a listener ID argument.
func (e *Env) WatchID(v goja.Value) int64 {
	id, err := jsconv.Int(v, "listenerId")
	e.Must(err)
	return id
}

func release(l *bridge.Listener, cancel func()) {
	if cancel != nil {
		cancel()
	}
	if l != nil {
		l.Release()
	}
}
