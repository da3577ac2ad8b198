// Package bind provides JSON bind and validation helpers for handlers
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"
	"subsift/internal/platform/validate"
)

// DefaultMaxBytes caps a request body when no limit is configured
const DefaultMaxBytes int64 = 1 << 20

// JSONOptions controls parsing behavior
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool  // default true
	AllowEmptyBody  bool  // default false
}

// DefaultJSONOptions returns the strict defaults
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{MaxBytes: DefaultMaxBytes, DisallowUnknown: true}
}

// seam
var jsonMore = func(dec *json.Decoder) bool { return dec.More() }

// ParseJSON decodes JSON into T, validates it, and maps failures to project errors
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := DefaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.C(r.Context()).Error().Err(err).Msg("failed to close request body")
		}
	}()

	var reader io.Reader = r.Body
	if o.MaxBytes > 0 {
		// one extra byte tells an exact fit from an oversized body
		reader = io.LimitReader(r.Body, o.MaxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return zero, perr.JSONErrf("read body: %v", err)
	}
	if o.MaxBytes > 0 && int64(len(body)) > o.MaxBytes {
		return zero, perr.JSONErrf("body exceeds %d bytes", o.MaxBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if o.AllowEmptyBody {
			return zero, nil
		}
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	var dst T
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) && o.AllowEmptyBody {
			return zero, nil
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if jsonMore(dec) {
		return zero, perr.JSONErrf("unexpected trailing data")
	}

	if err := validate.Struct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}
