// Package gcontext tracks which global script contexts are still alive.
//
// A global context corresponds to one loaded page. Anything that holds script
// values tied to a context (listeners, pending callbacks) must consult the
// Manager before touching them: once a context is removed, its values must
// never be read or invoked again.
package gcontext

import (
	"sort"
	"sync"
)

// ID identifies a global context. The zero ID is never issued.
type ID uint64

// Manager is the registry of live contexts. It is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	next      ID
	live      map[ID]struct{}
	observers map[uint64]func(ID)
	nextObs   uint64
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{
		live:      make(map[ID]struct{}),
		observers: make(map[uint64]func(ID)),
	}
}

// Add registers a new live context and returns its ID.
func (m *Manager) Add() ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.live[id] = struct{}{}
	return id
}

// Remove marks id as dead and notifies observers. It reports whether id was
// live. Observers run on the calling goroutine, after the context is already
// reported dead, and outside the registry lock.
func (m *Manager) Remove(id ID) bool {
	m.mu.Lock()
	if _, ok := m.live[id]; !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.live, id)
	keys := make([]uint64, 0, len(m.observers))
	for k := range m.observers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	observers := make([]func(ID), 0, len(keys))
	for _, k := range keys {
		observers = append(observers, m.observers[k])
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(id)
	}
	return true
}

// IsAlive reports whether id has been added and not yet removed.
func (m *Manager) IsAlive(id ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.live[id]
	return ok
}

// Len returns the number of live contexts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// OnRemove registers fn to be called whenever a context is removed.
// Observers are called in registration order. The returned function
// unregisters fn.
func (m *Manager) OnRemove(fn func(ID)) (cancel func()) {
	m.mu.Lock()
	m.nextObs++
	key := m.nextObs
	m.observers[key] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, key)
			m.mu.Unlock()
		})
	}
}
