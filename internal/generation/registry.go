package generation

import (
	"sync"
	"time"
)

// Registry keeps one Orchestrator per owner so each user has at most one
// live run, while different users run independently. Orchestrators that sit
// idle are dropped by Evict.
type Registry struct {
	mu       sync.Mutex
	byOwner  map[string]*Orchestrator
	lastUsed map[string]time.Time
	factory  func(owner string) *Orchestrator
	now      func() time.Time
}

// NewRegistry creates a registry building orchestrators with factory.
func NewRegistry(factory func(owner string) *Orchestrator) *Registry {
	return &Registry{
		byOwner:  make(map[string]*Orchestrator),
		lastUsed: make(map[string]time.Time),
		factory:  factory,
		now:      time.Now,
	}
}

// For returns the owner's orchestrator, creating it on first use.
func (r *Registry) For(owner string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUsed[owner] = r.now()
	if o, ok := r.byOwner[owner]; ok {
		return o
	}
	o := r.factory(owner)
	r.byOwner[owner] = o
	return o
}

// Lookup returns the owner's orchestrator without creating one.
func (r *Registry) Lookup(owner string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byOwner[owner]
	return o, ok
}

// Len returns the number of orchestrators held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOwner)
}

// Evict drops the orchestrators of owners not seen for idleFor whose run is
// not in progress, and returns how many were dropped.
func (r *Registry) Evict(idleFor time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idleFor)
	n := 0
	for owner, o := range r.byOwner {
		if o.State().Running() || r.lastUsed[owner].After(cutoff) {
			continue
		}
		delete(r.byOwner, owner)
		delete(r.lastUsed, owner)
		n++
	}
	return n
}

// CancelAll aborts every live run. Used on shutdown.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.byOwner {
		if o.Cancel() {
			n++
		}
	}
	return n
}
