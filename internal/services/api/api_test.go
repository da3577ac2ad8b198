package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subsift/internal/core/pipeline"
	"subsift/internal/modkit"
	"subsift/internal/platform/config"
	phttp "subsift/internal/platform/net/http"
	"subsift/internal/platform/testkit"
	"subsift/internal/settings"

	"github.com/go-chi/chi/v5"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Kind       string          `json:"kind"`
	Error      string          `json:"error"`
	Field      string          `json:"field"`
	RequestID  string          `json:"request_id"`
	Data       json.RawMessage `json:"data"`
}

var sample = testkit.SRT(
	[]string{"00:00:01,000 --> 00:00:03,000", "[door slams] Hello there."},
	[]string{"00:00:04,000 --> 00:00:06,000", "How are you?"},
	[]string{"00:00:20,000 --> 00:00:22,000", "Visit www.example.com"},
)

func newAPI(t *testing.T) http.Handler {
	t.Helper()
	e, err := pipeline.Default()
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	m := chi.NewRouter()
	Mount(phttp.AdaptChi(m), Options{Deps: modkit.Deps{
		Env:       config.Env{APIMaxBytes: 64 << 10, APITimeout: 5 * time.Second},
		Engine:    e,
		Settings:  settings.Default(),
		Service:   "subsift-api",
		StartedAt: time.Now(),
	}})
	return m
}

func call(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *strings.Reader
	switch b := body.(type) {
	case nil:
		rd = strings.NewReader("")
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() == 0 {
		return rec, env
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

type cleanOut struct {
	Text   string           `json:"text"`
	Report *pipeline.Report `json:"report"`
}

func TestClean_Defaults(t *testing.T) {
	h := newAPI(t)
	rec, env := call(t, h, "POST", "/v1/clean", map[string]any{"language": "en", "text": sample})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %+v", rec.Code, env)
	}
	if env.RequestID == "" || rec.Header().Get("X-Request-ID") != env.RequestID {
		t.Fatalf("request id: body %q header %q", env.RequestID, rec.Header().Get("X-Request-ID"))
	}
	var out cleanOut
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("data: %v", err)
	}
	testkit.MustNotContain(t, out.Text, "example.com")
	testkit.MustContain(t, out.Text, "[door slams] Hello there.")
	if out.Report == nil || len(out.Report.Removed) != 1 || out.Report.OutputCues != 2 || out.Report.Language != "en" {
		t.Fatalf("report = %+v", out.Report)
	}
}

func TestClean_OptionsOverlay(t *testing.T) {
	h := newAPI(t)
	body := `{"language":"en","text":` + quote(sample) + `,"options":{"text_cleaning":{"remove_sdh":true}}}`
	rec, env := call(t, h, "POST", "/v1/clean", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %+v", rec.Code, env)
	}
	var out cleanOut
	_ = json.Unmarshal(env.Data, &out)
	testkit.MustNotContain(t, out.Text, "door slams")
	testkit.MustContain(t, out.Text, "Hello there.")

	// the overlay must not leak into the next request
	_, env = call(t, h, "POST", "/v1/clean", map[string]any{"language": "en", "text": sample})
	_ = json.Unmarshal(env.Data, &out)
	testkit.MustContain(t, out.Text, "[door slams]")
}

func TestClean_Errors(t *testing.T) {
	h := newAPI(t)
	cases := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"missing text", map[string]any{"language": "en"}, 400, "validation"},
		{"bad json", `{"text":`, 400, "json"},
		{"unknown field", map[string]any{"text": sample, "lang": "en"}, 400, "json"},
		{"bad language", map[string]any{"text": sample, "language": "!!"}, 400, "validation"},
		{"no profile", map[string]any{"text": sample, "language": "zz"}, 404, "profile_not_found"},
		{"no language", map[string]any{"text": sample}, 404, "profile_not_found"},
		{"no cues", map[string]any{"text": "   \n", "language": "en"}, 422, "empty_document"},
		{"bad timing", map[string]any{"text": "1\nsoon --> later\nhi\n\n2\n00:00:01,000 --> 00:00:02,000\nx\n", "language": "en"}, 422, "parse_error"},
		{"bad options", `{"language":"en","text":"x","options":{"settings":{"min_keep_ratio":5}}}`, 400, "validation"},
		{"too large", map[string]any{"text": strings.Repeat("a", 65<<10), "language": "en"}, 400, "json"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, env := call(t, h, "POST", "/v1/clean", c.body)
			if rec.Code != c.status || env.Kind != c.kind || env.Error == "" {
				t.Fatalf("got %d %+v, want %d %s", rec.Code, env, c.status, c.kind)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	rec, env := call(t, newAPI(t), "GET", "/v1/profiles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var list []struct {
		Language  string `json:"language"`
		Detectors int    `json:"detectors"`
		Default   bool   `json:"default"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("data: %v", err)
	}
	seen := map[string]bool{}
	for _, p := range list {
		seen[p.Language] = true
		if p.Detectors == 0 {
			t.Errorf("profile %s has no detectors", p.Language)
		}
		if p.Default != (p.Language == "default") {
			t.Errorf("profile %s default flag = %v", p.Language, p.Default)
		}
	}
	if !seen["en"] || !seen["default"] {
		t.Fatalf("profiles = %+v", list)
	}
}

func TestMeta(t *testing.T) {
	h := newAPI(t)
	rec, env := call(t, h, "GET", "/meta/health", nil)
	if rec.Code != 200 {
		t.Fatalf("health %d", rec.Code)
	}
	testkit.MustContain(t, string(env.Data), `"service":"subsift-api"`)
	testkit.MustContain(t, string(env.Data), `"en"`)

	rec, env = call(t, h, "GET", "/meta/version/", nil)
	if rec.Code != 200 {
		t.Fatalf("version %d", rec.Code)
	}
	testkit.MustContain(t, string(env.Data), `"service":"subsift-api"`)

	rec, env = call(t, h, "GET", "/v1/clean", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /v1/clean = %d %+v", rec.Code, env)
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
