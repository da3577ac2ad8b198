// Package http provides http transport for cleaning
package http

import (
	stdhttp "net/http"

	"subsift/internal/modkit/httpkit"
	"subsift/internal/services/api/clean/domain"
	svc "subsift/internal/services/api/clean/service"
)

// Register mounts the clean endpoints on the given router
func Register(r httpkit.Router, s svc.Service, maxBytes int64) {
	h := &handlers{svc: s}
	httpkit.PostJSON(r, "/clean", h.clean, httpkit.BodyLimit(maxBytes))
	httpkit.Get(r, "/profiles", h.profiles)
}

type handlers struct{ svc svc.Service }

// POST /v1/clean
func (h *handlers) clean(r *stdhttp.Request, in domain.CleanInput) (any, error) {
	return h.svc.Clean(r.Context(), in)
}

// GET /v1/profiles
func (h *handlers) profiles(r *stdhttp.Request) (any, error) {
	return h.svc.Profiles(r.Context())
}
