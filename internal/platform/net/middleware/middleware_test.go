package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pnet "subsift/internal/platform/net"
	"subsift/internal/platform/testkit"
)

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestRequestID(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = pnet.RequestID(r.Context())
	}), RequestID())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("propagated id: ctx %q header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id: ctx %q header %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRecoverJSON(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), RequestID(), RecoverJSON)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "rid-9")

	testkit.MustNotPanic(t, func() { h.ServeHTTP(rec, req) })
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	var body pnet.Wire
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != "panic" || body.RequestID != "rid-9" {
		t.Fatalf("body %+v", body)
	}
	testkit.MustNotContain(t, rec.Body.String(), "boom")

	abort := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
	testkit.MustPanic(t, func() { abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)) })
}

func TestAccessLog_CapturesStatusAndBytes(t *testing.T) {
	var cw *captureWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cw = w.(*captureWriter)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
		w.(http.Flusher).Flush()
	})
	rec := httptest.NewRecorder()
	AccessLogZerolog(AccessLogOptions{Slow: time.Nanosecond})(inner).ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if cw.status != http.StatusAccepted || cw.bytes != 5 || rec.Body.String() != "hello" || !rec.Flushed {
		t.Fatalf("capture %+v, body %q", cw, rec.Body.String())
	}
}

func TestDefaults(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":"` + strings.Repeat("a", 2048) + `"}`))
	})
	h := chain(ok, Defaults(StackOptions{CORSOrigins: []string{"https://app.example"}})...)

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/v1/clean", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
			t.Fatalf("allow origin = %q", got)
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
		req.Header.Set("Origin", "https://evil.example")
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("allow origin = %q", got)
		}
	})

	t.Run("gzip and request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/profiles/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("expected gzip, headers %v", rec.Header())
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Fatalf("missing request id header")
		}
	})
}
