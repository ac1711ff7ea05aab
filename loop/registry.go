package loop

import "github.com/wippyai/runloop"

// Registry is the set of engines serviced by a loop. It holds non-owning
// references: engines are created and destroyed by the embedding
// application, which must unregister an engine before tearing it down.
//
// Engines are keyed by identity, so implementations must be comparable
// (pointer receivers are the norm). Registering a non-comparable value
// panics.
//
// Registry is not synchronized. Mutate it only from the goroutine running
// the loop, or guard every access with a lock of your own.
type Registry struct {
	engines map[runloop.Engine]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[runloop.Engine]struct{})}
}

// Add inserts e. Adding an engine twice is a no-op.
func (r *Registry) Add(e runloop.Engine) {
	if e == nil {
		return
	}
	r.engines[e] = struct{}{}
}

// Remove deletes e. Removing an unknown engine is a no-op.
func (r *Registry) Remove(e runloop.Engine) {
	delete(r.engines, e)
}

// Contains reports whether e is registered.
func (r *Registry) Contains(e runloop.Engine) bool {
	_, ok := r.engines[e]
	return ok
}

func (r *Registry) Len() int {
	return len(r.engines)
}

// Each calls fn for every registered engine in unspecified order. fn may
// remove engines; engines added during Each may or may not be visited.
func (r *Registry) Each(fn func(runloop.Engine)) {
	for e := range r.engines {
		fn(e)
	}
}

// Snapshot returns the registered engines in unspecified order.
func (r *Registry) Snapshot() []runloop.Engine {
	out := make([]runloop.Engine, 0, len(r.engines))
	for e := range r.engines {
		out = append(out, e)
	}
	return out
}
