package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"
	pnet "subsift/internal/platform/net"
)

// RecoverJSON converts panics into a JSON 500 envelope and logs the stack with
// the request id. http.ErrAbortHandler is re-panicked, as net/http expects
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			reqID := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			status, body := pnet.Error(perr.PanicErrf("internal error"), reqID)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(body)
		}()
		next.ServeHTTP(w, r)
	})
}
