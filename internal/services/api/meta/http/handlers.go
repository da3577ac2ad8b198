// Package http provides meta endpoints
package http

import (
	"net/http"
	"time"

	"subsift/internal/core/version"
	"subsift/internal/modkit/httpkit"
)

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Languages   func() []string
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/version", h.version)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK        bool     `json:"ok"`
	Service   string   `json:"service"`
	Started   string   `json:"started"`
	Now       string   `json:"now"`
	Uptime    int64    `json:"uptime"`
	Languages []string `json:"languages,omitempty"`
}

// GET /meta/health
func (h *handlers) health(_ *http.Request) (any, error) {
	var langs []string
	if h.deps.Languages != nil {
		langs = h.deps.Languages()
	}
	return HealthResponse{
		OK:        true,
		Service:   h.deps.ServiceName,
		Started:   h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:       time.Now().UTC().Format(time.RFC3339),
		Uptime:    int64(time.Since(h.deps.StartedAt) / time.Second),
		Languages: langs,
	}, nil
}

// GET /meta/version
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}
