// Package registry implements the computation registry (C1): the map
// from a computation id to its descriptor, and — atomically alongside
// it — the computation's output queue and executor cache, so that the
// tri-map equivalence invariant (registry / output-queue map /
// executor-cache map all agree on which ids exist) holds by
// construction rather than by discipline across three separate maps.
package registry

import (
	"sync"

	"github.com/cuemby/streamharness/pkg/executor"
	"github.com/cuemby/streamharness/pkg/workservice"
)

// Computation bundles everything the harness keeps per computation id.
type Computation struct {
	Descriptor workservice.ComputationDescriptor
	Output     *OutputQueue
	Executors  *executor.Cache
}

// Registry is the concurrent map of computation id to Computation.
// Registration is idempotent: the first descriptor seen for an id wins,
// matching the first-wins resolution of the source's ambiguous
// duplicate-registration behavior (§9 Open Questions).
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Computation
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Computation)}
}

// Register adds a computation if its id is not already present. Returns
// the (possibly pre-existing) Computation and whether this call actually
// inserted it.
func (r *Registry) Register(d workservice.ComputationDescriptor) (*Computation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[d.ID]; ok {
		return existing, false
	}

	c := &Computation{
		Descriptor: d,
		Output:     newOutputQueue(),
		Executors:  executor.NewCache(),
	}
	r.byID[d.ID] = c
	return c, true
}

// Lookup returns the Computation for id, if registered.
func (r *Registry) Lookup(id string) (*Computation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// All returns every registered Computation, in no particular order, for
// the status surface and the commit aggregator.
func (r *Registry) All() []*Computation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Computation, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// DrainAndCloseAll closes every idle executor cached across every
// registered computation. Used during shutdown.
func (r *Registry) DrainAndCloseAll() error {
	r.mu.RLock()
	computations := make([]*Computation, 0, len(r.byID))
	for _, c := range r.byID {
		computations = append(computations, c)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, c := range computations {
		if err := c.Executors.DrainAndClose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
