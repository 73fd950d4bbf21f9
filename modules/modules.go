// Package modules defines routing modules and the ordered registry that
// attaches them to the application router. Modules receive the shared
// resources as an argument to Register and must not reach for them earlier.
package modules

import (
	"errors"
	"fmt"

	"newsportal/metrics"
	"newsportal/modules/health"
	"newsportal/modules/index"
	metricsmodule "newsportal/modules/metrics"
	"newsportal/resources"

	"github.com/gorilla/mux"
)

// ErrDuplicateModule is returned when two modules share a name
var ErrDuplicateModule = errors.New("duplicate routing module")

// Module is a named group of routes
type Module interface {
	Name() string
	Register(r *mux.Router, res resources.Resources) error
}

// Prefixed is implemented by modules whose routes live under a path prefix
type Prefixed interface {
	Prefix() string
}

// Registry keeps modules in insertion order
type Registry struct {
	modules []Module
	names   map[string]struct{}
}

// NewRegistry returns a registry holding mods in order
func NewRegistry(mods ...Module) (*Registry, error) {
	reg := &Registry{names: make(map[string]struct{}, len(mods))}
	for _, m := range mods {
		if err := reg.Add(m); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Add appends m. Names must be unique.
func (r *Registry) Add(m Module) error {
	if m == nil {
		return errors.New("routing module is nil")
	}
	if _, dup := r.names[m.Name()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name())
	}
	r.names[m.Name()] = struct{}{}
	r.modules = append(r.modules, m)
	return nil
}

// Modules returns the registered modules in order
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Names returns module names in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		names = append(names, m.Name())
	}
	return names
}

// RegisterAll attaches every module to router in order and stops at the
// first failure.
func (r *Registry) RegisterAll(router *mux.Router, res resources.Resources) error {
	for _, m := range r.modules {
		target := router
		if p, ok := m.(Prefixed); ok && p.Prefix() != "" {
			target = router.PathPrefix(p.Prefix()).Subrouter()
		}
		if err := m.Register(target, res); err != nil {
			return fmt.Errorf("failed to register module %s: %w", m.Name(), err)
		}
		res.Logger().Infow("Routing module registered", "module", m.Name())
	}
	metrics.ModulesRegistered.Set(float64(len(r.modules)))
	return nil
}

// Default returns the modules served by the application
func Default() []Module {
	return []Module{
		index.New(),
		health.New(),
		metricsmodule.New(),
	}
}
