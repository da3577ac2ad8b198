// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	modkit "subsift/internal/modkit"
	"subsift/internal/modkit/httpkit"
	metahttp "subsift/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New constructs a meta module with the provided dependencies and options
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	started := deps.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	d := metahttp.Deps{ServiceName: deps.Service, StartedAt: started}
	if deps.Engine != nil {
		d.Languages = deps.Engine.Registry().Languages
	}
	return &Module{b: b, deps: d}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.b.Name }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return m.b.Prefix }
