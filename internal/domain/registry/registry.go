// Package registry implements the process-wide ComponentRegistry: a
// read-mostly, name-keyed directory of forwarders, IP filters, updaters,
// verifiers, and LLM handlers, each constructed once at boot and thereafter
// looked up by name. Adapted from the agent-process registry pattern
// (map[string]handle behind a RWMutex, idempotent registration).
package registry

import "sync"

// Registry is a process-global mapping from component name to a shared
// handle implementing one of the five capability sets. Readers never block
// readers; registration is idempotent on name.
type Registry struct {
	mu         sync.RWMutex
	forwarders map[string]any
	ipFilters  map[string]any
	updaters   map[string]any
	verifiers  map[string]any
	llmHandler map[string]any
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		forwarders: make(map[string]any),
		ipFilters:  make(map[string]any),
		updaters:   make(map[string]any),
		verifiers:  make(map[string]any),
		llmHandler: make(map[string]any),
	}
}

// RegisterForwarder registers handle under name, unless a handle is already
// registered under that name -- in which case the existing handle is
// returned unchanged. This is used by standalone mode, which wires the same
// component twice.
func (r *Registry) RegisterForwarder(name string, handle any) any {
	return register(r, &r.forwarders, name, handle)
}

// GetForwarder returns the handle registered under name, if any.
func (r *Registry) GetForwarder(name string) (any, bool) { return get(r, r.forwarders, name) }

// RegisterIPFilter registers handle under name, idempotent on name.
func (r *Registry) RegisterIPFilter(name string, handle any) any {
	return register(r, &r.ipFilters, name, handle)
}

// GetIPFilter returns the handle registered under name, if any.
func (r *Registry) GetIPFilter(name string) (any, bool) { return get(r, r.ipFilters, name) }

// RegisterUpdater registers handle under name, idempotent on name.
func (r *Registry) RegisterUpdater(name string, handle any) any {
	return register(r, &r.updaters, name, handle)
}

// GetUpdater returns the handle registered under name, if any.
func (r *Registry) GetUpdater(name string) (any, bool) { return get(r, r.updaters, name) }

// RegisterVerifier registers handle under name, idempotent on name.
func (r *Registry) RegisterVerifier(name string, handle any) any {
	return register(r, &r.verifiers, name, handle)
}

// GetVerifier returns the handle registered under name, if any.
func (r *Registry) GetVerifier(name string) (any, bool) { return get(r, r.verifiers, name) }

// RegisterLLMHandler registers handle under name, idempotent on name.
func (r *Registry) RegisterLLMHandler(name string, handle any) any {
	return register(r, &r.llmHandler, name, handle)
}

// GetLLMHandler returns the handle registered under name, if any.
func (r *Registry) GetLLMHandler(name string) (any, bool) { return get(r, r.llmHandler, name) }

// register is the shared idempotent-insert path for every capability set.
// The writer lock is held only for the map mutation, never across I/O.
func register(r *Registry, set *map[string]any, name string, handle any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := (*set)[name]; ok {
		return existing
	}
	(*set)[name] = handle
	return handle
}

func get(r *Registry, set map[string]any, name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := set[name]
	return h, ok
}
