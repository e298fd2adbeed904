// Package store holds observable application state: generic values that notify
// subscribers on change, and the staging area that separates a freshly
// downloaded dataset from the committed one.
package store

import (
	"slices"
	"sync"
)

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Value is a concurrency-safe container that notifies subscribers after every
// write. Listeners run synchronously, in registration order, on the writing
// goroutine and outside the lock, so they may read or write the value again.
type Value[T any] struct {
	mu        sync.RWMutex
	current   T
	listeners []listener[T]
	nextID    uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

func (v *Value[T]) Set(x T) {
	v.notify(x, v.store(x))
}

// Update applies fn to the current value and stores the result atomically.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	next := fn(v.current)
	v.current = next
	listeners := slices.Clone(v.listeners)
	v.mu.Unlock()

	v.notify(next, listeners)
	return next
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.listeners = append(v.listeners, listener[T]{id: id, fn: fn})
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			v.listeners = slices.DeleteFunc(v.listeners, func(l listener[T]) bool { return l.id == id })
		})
	}
}

// Subscribers returns the number of registered listeners.
func (v *Value[T]) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.listeners)
}

// store writes x and returns the listeners to notify.
func (v *Value[T]) store(x T) []listener[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = x
	return slices.Clone(v.listeners)
}

func (v *Value[T]) notify(x T, listeners []listener[T]) {
	for _, l := range listeners {
		l.fn(x)
	}
}
