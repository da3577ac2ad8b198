// Package api provides the HTTP API for the application
package api

import (
	"subsift/internal/modkit"
	"subsift/internal/modkit/httpkit"
	"subsift/internal/platform/logger"
	phttp "subsift/internal/platform/net/http"

	cleanmod "subsift/internal/services/api/clean/module"
	metamod "subsift/internal/services/api/meta/module"
)

// Options are the API options
type Options struct {
	Deps           modkit.Deps
	EnableProfiler bool
}

// Mount installs the common middleware stack and every module onto r.
// r must not have routes yet
func Mount(r phttp.Router, opt Options) {
	r.Use(httpkit.CommonStack(opt.Deps.Env)...)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	mods := []modkit.Module{
		metamod.New(opt.Deps),
		cleanmod.New(opt.Deps),
	}
	log := logger.Named("api")
	for _, m := range mods {
		m.MountRoutes(r)
		log.Debug().Str("module", m.Name()).Str("prefix", m.Prefix()).Msg("module mounted")
	}
}
