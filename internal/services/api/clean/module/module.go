// Package module wires cleaning into the API using modkit
package module

import (
	modkit "subsift/internal/modkit"
	"subsift/internal/modkit/httpkit"
	cleanhttp "subsift/internal/services/api/clean/http"
	cleansvc "subsift/internal/services/api/clean/service"
)

// Module implements the modkit.Module interface
type Module struct {
	b        modkit.Built
	svc      cleansvc.Service
	maxBytes int64
}

// New constructs the clean module, mounted under /v1 unless overridden
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("clean"), modkit.WithPrefix("/v1")}, opts...)...)
	return &Module{
		b:        b,
		svc:      cleansvc.New(deps.Engine, deps.Settings),
		maxBytes: deps.Env.APIMaxBytes,
	}
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { cleanhttp.Register(rr, m.svc, m.maxBytes) })
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return m.b.Name }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return m.b.Prefix }
