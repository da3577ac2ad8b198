package net_test

import (
	"context"
	"net/http"
	"testing"

	perr "subsift/internal/platform/errors"
	pnet "subsift/internal/platform/net"
)

func TestWithRequest(t *testing.T) {
	base := context.Background()
	if ctx := pnet.WithRequest(base, ""); ctx != base {
		t.Fatalf("expected ctx to be unchanged for an empty id")
	}
	ctx := pnet.WithRequest(base, "req-123")
	if got := pnet.RequestID(ctx); got != "req-123" {
		t.Fatalf("RequestID got %q want %q", got, "req-123")
	}
	if got := pnet.RequestID(base); got != "" {
		t.Fatalf("RequestID on bare ctx got %q", got)
	}
}

func TestOK(t *testing.T) {
	status, w := pnet.OK(map[string]any{"x": 1}, "req-1")
	if status != http.StatusOK || w.StatusCode != http.StatusOK || w.Status != "OK" {
		t.Fatalf("status mismatch: %d %+v", status, w)
	}
	if w.RequestID != "req-1" || w.Data.(map[string]any)["x"] != 1 {
		t.Fatalf("wire mismatch: %+v", w)
	}
}

func TestError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{perr.ProfileNotFoundf("no profile for %q", "zz"), http.StatusNotFound, "profile_not_found"},
		{perr.Newf(perr.ErrorCodeParse, "bad timing"), http.StatusUnprocessableEntity, "parse_error"},
		{perr.EmptyDocumentf("no cues"), http.StatusUnprocessableEntity, "empty_document"},
		{perr.WithField(perr.Validationf("text is required"), "text"), http.StatusBadRequest, "validation"},
		{perr.JSONErrf("invalid JSON"), http.StatusBadRequest, "json"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "unknown"},
	}
	for _, c := range cases {
		status, w := pnet.Error(c.err, "rid")
		if status != c.status || w.StatusCode != c.status || w.Kind != c.kind {
			t.Errorf("%v: got %d %q, want %d %q", c.err, status, w.Kind, c.status, c.kind)
		}
		if w.Error == "" || w.RequestID != "rid" || w.Data != nil {
			t.Errorf("%v: wire %+v", c.err, w)
		}
	}

	_, w := pnet.Error(perr.WithField(perr.Validationf("bad"), "language"), "")
	if w.Field != "language" {
		t.Fatalf("field = %q", w.Field)
	}
	if status, _ := pnet.Error(nil, ""); status != http.StatusOK {
		t.Fatalf("nil error status = %d", status)
	}
}
