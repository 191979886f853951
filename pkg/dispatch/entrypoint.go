package dispatch

import (
	"context"
	"sync"
)

// Environment is a launched callback execution environment.
type Environment interface {
	// Deliver hands ev to the environment without waiting for the user
	// callback to run.
	Deliver(ev CallbackEvent)
	// Close releases the environment.
	Close() error
}

// Entrypoint launches an Environment.
type Entrypoint interface {
	Launch(ctx context.Context) (Environment, error)
}

// EntrypointFunc adapts a function to the Entrypoint interface.
type EntrypointFunc func(ctx context.Context) (Environment, error)

// Launch calls f.
func (f EntrypointFunc) Launch(ctx context.Context) (Environment, error) { return f(ctx) }

// Resolver maps a persisted dispatcher handle to its entrypoint.
type Resolver interface {
	Resolve(handle int64) (Entrypoint, bool)
}

// Registry is an in-memory Resolver.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Entrypoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]Entrypoint)}
}

// Register binds handle to ep, replacing any earlier binding.
func (r *Registry) Register(handle int64, ep Entrypoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[handle] = ep
}

// Resolve implements Resolver.
func (r *Registry) Resolve(handle int64) (Entrypoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.entries[handle]
	return ep, ok
}

type funcEnvironment struct {
	fn func(CallbackEvent)
}

func (e *funcEnvironment) Deliver(ev CallbackEvent) { e.fn(ev) }
func (e *funcEnvironment) Close() error             { return nil }

// NewFuncEntrypoint returns an Entrypoint whose environment calls fn
// synchronously for every event.
func NewFuncEntrypoint(fn func(CallbackEvent)) Entrypoint {
	return EntrypointFunc(func(context.Context) (Environment, error) {
		return &funcEnvironment{fn: fn}, nil
	})
}
