package hotkey

import "sync"

// Handle identifies a callback in a Registry.
type Handle uint64

// Registry routes a key press to the callback that registered for it. The
// binder goroutine holds only the handle; the registry owns the callbacks.
type Registry struct {
	mu   sync.RWMutex
	next Handle
	cbs  map[Handle]func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cbs: make(map[Handle]func())}
}

// Add stores fn and returns its handle.
func (r *Registry) Add(fn func()) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.cbs[r.next] = fn
	return r.next
}

// Remove forgets h.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	delete(r.cbs, h)
	r.mu.Unlock()
}

// Dispatch runs the callback for h and reports whether one was found.
func (r *Registry) Dispatch(h Handle) bool {
	r.mu.RLock()
	fn, ok := r.cbs[h]
	r.mu.RUnlock()
	if ok {
		fn()
	}
	return ok
}
