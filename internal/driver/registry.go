// Package driver holds the drivers registered for a manager and picks the
// one to use.
package driver

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// Registry keeps drivers in registration order.
type Registry struct {
	mu      sync.RWMutex
	drivers []types.Driver
}

// NewRegistry returns a registry holding the given drivers.
func NewRegistry(drivers ...types.Driver) *Registry {
	r := &Registry{}
	for _, d := range drivers {
		r.Register(d)
	}
	return r
}

// Register adds d. A driver with the same name replaces the earlier one in
// its original position.
func (r *Registry) Register(d types.Driver) {
	if d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.drivers {
		if existing.Name() == d.Name() {
			r.drivers[i] = d
			return
		}
	}
	r.drivers = append(r.drivers, d)
}

// Names returns the registered driver names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.drivers))
	for i, d := range r.drivers {
		names[i] = d.Name()
	}
	return names
}

// Select returns the preferred driver when it is registered and supported,
// otherwise the first supported driver in registration order.
func (r *Registry) Select(preferred string) (types.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if preferred != "" {
		for _, d := range r.drivers {
			if d.Name() == preferred && d.IsSupported() {
				return d, nil
			}
		}
	}
	for _, d := range r.drivers {
		if d.IsSupported() {
			return d, nil
		}
	}
	return nil, types.NewConfigurationError("select_driver", preferred,
		fmt.Sprintf("%d drivers registered, none supported", len(r.drivers)), types.ErrNoDriver)
}
