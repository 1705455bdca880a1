// Package registry provides the process-wide mapping from session id to
// in-memory session object, with atomic get-or-create semantics.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Registry lazily materialises one value per id. Concurrent Gets for the
// same id share a single load; loads for different ids run independently.
type Registry[T any] struct {
	load    func(ctx context.Context, id string) (T, error)
	mu      sync.Mutex
	entries map[string]*entry[T]
}

type entry[T any] struct {
	once sync.Once
	val  T
	err  error
}

// New creates a registry backed by the given loader.
func New[T any](load func(ctx context.Context, id string) (T, error)) *Registry[T] {
	return &Registry[T]{
		load:    load,
		entries: make(map[string]*entry[T]),
	}
}

// Get returns the value for id, invoking the loader on first access.
// A failed load is forgotten so a later call can retry.
func (r *Registry[T]) Get(ctx context.Context, id string) (T, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry[T]{}
		r.entries[id] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.val, e.err = r.load(ctx, id)
	})
	if e.err != nil {
		r.mu.Lock()
		if r.entries[id] == e {
			delete(r.entries, id)
		}
		r.mu.Unlock()
	}
	return e.val, e.err
}

// Loaded returns the ids materialised so far, sorted.
func (r *Registry[T]) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
