package feed

import "sync"

// Registry hands out one engine per signed-in user so the web and API
// handlers share a browsing session across requests.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	factory func(userID string) *Engine
}

// NewRegistry constructs a Registry using factory to build missing engines.
func NewRegistry(factory func(userID string) *Engine) *Registry {
	return &Registry{
		engines: make(map[string]*Engine),
		factory: factory,
	}
}

// Get returns the user's engine, creating it on first use.
func (r *Registry) Get(userID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[userID]; ok {
		return engine
	}
	engine := r.factory(userID)
	r.engines[userID] = engine
	return engine
}

// Drop closes and forgets the user's engine, as on sign-out.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	engine, ok := r.engines[userID]
	delete(r.engines, userID)
	r.mu.Unlock()
	if ok {
		_ = engine.Close()
	}
}
