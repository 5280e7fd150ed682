package platform

import (
	"slices"
	"sync"
)

// Subscribers fans events out to registered handlers. The zero value is ready
// to use.
type Subscribers[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(T)
}

// Add registers fn and returns a function that removes it. The returned
// function is idempotent.
func (s *Subscribers[T]) Add(fn func(T)) (cancel func()) {
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]func(T))
	}
	s.next++
	id := s.next
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Len returns the number of handlers.
func (s *Subscribers[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Publish calls every handler with v, in registration order, on the caller's
// goroutine and outside the lock.
func (s *Subscribers[T]) Publish(v T) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
