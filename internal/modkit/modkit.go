// Package modkit provides module wiring and core deps for the API
package modkit

import (
	"time"

	"subsift/internal/core/pipeline"
	"subsift/internal/modkit/httpkit"
	"subsift/internal/platform/config"
	"subsift/internal/settings"
)

// Module is the common surface for API modules that mount routes under a prefix
// keep this tiny so modules stay decoupled
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r httpkit.Router)
	// Name returns the module name
	Name() string
	// Prefix returns the mount prefix
	Prefix() string
}

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Env       config.Env
	Engine    *pipeline.Engine
	Settings  *settings.File // server side defaults, never mutated by requests
	Service   string
	StartedAt time.Time
}
