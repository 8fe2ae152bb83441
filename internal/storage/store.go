// Package storage defines the key/value store that holds options, site state
// and cached rates, plus an in-process implementation.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Store is a JSON key/value store with change notification. Get reports
// whether the key existed; a missing key leaves dst untouched.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	// Watch calls fn with the key of every change until cancel is called.
	Watch(fn func(key string)) (cancel func())
}

// StoreError is returned when a store operation fails.
type StoreError struct {
	Op    string
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("store %s %q failed", e.Op, e.Key)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Watchers fans change notifications out to registered callbacks.
// The zero value is ready to use.
type Watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(string)
}

// Add registers fn and returns a function that removes it.
func (w *Watchers) Add(fn func(key string)) (cancel func()) {
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[int]func(string))
	}
	id := w.next
	w.next++
	w.fns[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

// Len returns the number of registered callbacks.
func (w *Watchers) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

// Notify calls every registered callback with key.
func (w *Watchers) Notify(key string) {
	w.mu.Lock()
	fns := make([]func(string), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
