// Package registry holds the fixed, name-unique, ordered list of balancer
// algorithms. The list is fixed when a registry is built (New or
// Standard); there is no API to register an algorithm afterwards. This
// mirrors the original balancer_registry.c's NULL-terminated static array.
package registry

import (
	"github.com/ceralive/ceracoder/pkg/balancer"
	"github.com/ceralive/ceracoder/pkg/balancer/adaptive"
	"github.com/ceralive/ceracoder/pkg/balancer/aimd"
	"github.com/ceralive/ceracoder/pkg/balancer/fixedrate"
)

// Registry is an ordered, name-unique list of algorithms. The first
// registered entry is the default.
type Registry struct {
	order  []balancer.Algorithm
	byName map[string]balancer.Algorithm
}

// New builds a registry from an ordered list of algorithms. Panics on a
// duplicate name — that is a programming error, caught at startup, not a
// runtime condition.
func New(algos ...balancer.Algorithm) *Registry {
	r := &Registry{
		byName: make(map[string]balancer.Algorithm, len(algos)),
	}
	for _, a := range algos {
		if _, exists := r.byName[a.Name()]; exists {
			panic("registry: duplicate balancer name " + a.Name())
		}
		r.byName[a.Name()] = a
		r.order = append(r.order, a)
	}
	return r
}

// Find looks up an algorithm by name (case-sensitive). ok is false if no
// algorithm is registered under that name.
func (r *Registry) Find(name string) (balancer.Algorithm, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Default returns the first-registered algorithm, or nil if the registry
// is empty.
func (r *Registry) Default() balancer.Algorithm {
	if len(r.order) == 0 {
		return nil
	}
	return r.order[0]
}

// All returns the registered algorithms in registration order. The
// returned slice must not be mutated by callers.
func (r *Registry) All() []balancer.Algorithm {
	return r.order
}

// Standard returns the registry shipped by the ceracoder binary: adaptive
// is registered first and is therefore the default, matching the original
// DEF_BALANCER="adaptive".
func Standard() *Registry {
	return New(adaptive.Algorithm(), aimd.Algorithm(), fixedrate.Algorithm())
}
