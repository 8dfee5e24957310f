// Package registry resolves component constructors by their string type tag,
// the way experiment files select readers, tokenizers, indexers and iterators.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

type Registry[T any] struct {
	kind string

	mu    sync.RWMutex
	ctors map[string]T
}

func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		ctors: make(map[string]T),
	}
}

func (r *Registry[T]) Register(name string, ctor T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ctors[name]; exists {
		panic(fmt.Sprintf("registry: %s %q registered twice", r.kind, name))
	}
	r.ctors[name] = ctor
}

func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.ctors[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s type %q (known: %v)", r.kind, name, r.names())
	}
	return ctor, nil
}

func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry[T]) names() []string {
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
