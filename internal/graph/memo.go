package graph

import (
	"sync"
	"sync/atomic"
)

// Memo is a compute-once cell that can be invalidated explicitly.
// The zero value is empty and ready to use.
type Memo[T any] struct {
	mu  sync.Mutex
	val atomic.Pointer[T]
}

// Get returns the cached value, running compute first if the cell is empty.
// Concurrent callers block until the single computation finishes.
func (m *Memo[T]) Get(compute func() T) T {
	if p := m.val.Load(); p != nil {
		return *p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.val.Load(); p != nil {
		return *p
	}
	v := compute()
	m.val.Store(&v)
	return v
}

// Peek returns the cached value without computing or waiting for it.
func (m *Memo[T]) Peek() (T, bool) {
	if p := m.val.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Ready reports whether a value is cached.
func (m *Memo[T]) Ready() bool { return m.val.Load() != nil }

// Clear drops the cached value so the next Get recomputes it.
func (m *Memo[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.val.Store(nil)
}
