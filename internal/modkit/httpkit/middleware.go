package httpkit

import (
	"net/http"

	"subsift/internal/platform/config"
	"subsift/internal/platform/net/middleware"
)

// CommonStack returns the root middleware slice for the API
func CommonStack(env config.Env) []func(http.Handler) http.Handler {
	return middleware.Defaults(middleware.StackOptions{
		CORSOrigins: env.APICORSOrigins,
		Timeout:     env.APITimeout,
		Slow:        env.APITimeout / 2,
	})
}
