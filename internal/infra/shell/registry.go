package shell

import (
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Registry holds the available runtimes.
type Registry struct {
	runtimes map[string]domain.Runtime
}

// NewRegistry creates a registry of runtimes keyed by name.
func NewRegistry(runtimes ...domain.Runtime) *Registry {
	r := &Registry{runtimes: make(map[string]domain.Runtime, len(runtimes))}
	for _, rt := range runtimes {
		r.runtimes[rt.Name()] = rt
	}
	return r
}

// NewDefaultRegistry creates the virtual, native and container runtimes
// from the runner configuration.
func NewDefaultRegistry(cfg *domain.Config) *Registry {
	return NewRegistry(
		NewVirtualRuntime(),
		NewNativeRuntime(cfg.Runner.Shell),
		NewContainerRuntime(cfg.Container.Engine, cfg.Container.Images),
	)
}

// Get returns a runtime by name.
func (r *Registry) Get(name string) (domain.Runtime, error) {
	rt, ok := r.runtimes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRuntime, name)
	}
	return rt, nil
}

// Select returns the preferred runtime if it supports os, else the
// container runtime if it does.
func (r *Registry) Select(preferred, os string) (domain.Runtime, error) {
	rt, err := r.Get(preferred)
	if err != nil {
		return nil, err
	}
	if rt.Supports(os) {
		return rt, nil
	}
	if c, ok := r.runtimes[domain.RuntimeContainer]; ok && c.Supports(os) {
		return c, nil
	}
	return nil, fmt.Errorf("%w %s", domain.ErrNoRuntime, os)
}
