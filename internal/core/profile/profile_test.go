package profile

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"subsift/internal/core/textkey"
	perr "subsift/internal/platform/errors"
)

func mustRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	r, err := NewRegistry(opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_EmbeddedProfiles(t *testing.T) {
	r := mustRegistry(t, Options{})
	got := r.Languages()
	for _, want := range []string{"de", "default", "en", "es", "fr", "ja"} {
		if !slices.Contains(got, want) {
			t.Fatalf("Languages() = %v, missing %q", got, want)
		}
	}
	p, err := r.Load("default")
	if err != nil {
		t.Fatalf("Load(default): %v", err)
	}
	if len(p.Detectors) == 0 || len(p.SDH) == 0 || len(p.Music) == 0 {
		t.Fatalf("default profile incomplete: %+v", p)
	}
	for _, cls := range DelimClasses {
		if len(p.Delimiters[cls]) == 0 {
			t.Fatalf("default profile has no %s delimiters", cls)
		}
	}
}

func TestRegistry_LookupForms(t *testing.T) {
	r := mustRegistry(t, Options{})
	for _, tag := range []string{"en", "EN", "en-US", "en_GB", "eng", "English"} {
		p, err := r.Load(tag)
		if err != nil {
			t.Fatalf("Load(%q): %v", tag, err)
		}
		if p.Language != "en" {
			t.Fatalf("Load(%q).Language = %q", tag, p.Language)
		}
	}
	if p, err := r.Load("und"); err != nil || p.Language != DefaultKey {
		t.Fatalf("Load(und) = %v, %v", p, err)
	}
}

func TestRegistry_ProfileNotFound(t *testing.T) {
	r := mustRegistry(t, Options{})
	_, err := r.Load("zz")
	if !perr.IsCode(err, perr.ErrorCodeProfileNotFound) {
		t.Fatalf("want ProfileNotFound, got %v", err)
	}
	pe, ok := perr.As(err)
	if !ok || pe.Field() != "language" {
		t.Fatalf("want field language, got %+v", pe)
	}
	if _, err := r.Load(); !perr.IsCode(err, perr.ErrorCodeProfileNotFound) {
		t.Fatalf("Load() with no tags: %v", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := mustRegistry(t, Options{})

	p, err := r.Resolve("en", Selection{UseDefaults: true, RequireLanguageProfile: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != "en+default" {
		t.Fatalf("Name() = %q", p.Name())
	}
	again, _ := r.Resolve("en-US", Selection{UseDefaults: true, RequireLanguageProfile: true})
	if again != p {
		t.Fatalf("composite not cached")
	}

	p, err = r.Resolve("fr", Selection{UseDefaults: true, UseEnglishOnAll: true})
	if err != nil || p.Name() != "fr+en+default" {
		t.Fatalf("Resolve(fr, english on all) = %v, %v", p.Name(), err)
	}

	if _, err := r.Resolve("zz", Selection{RequireLanguageProfile: true}); !perr.IsCode(err, perr.ErrorCodeProfileNotFound) {
		t.Fatalf("want ProfileNotFound, got %v", err)
	}
	p, err = r.Resolve("zz", Selection{})
	if err != nil || p.Name() != DefaultKey {
		t.Fatalf("fallback = %v, %v", p, err)
	}
	if _, err := r.Resolve("", Selection{RequireLanguageProfile: true}); !perr.IsCode(err, perr.ErrorCodeProfileNotFound) {
		t.Fatalf("empty tag with required profile: %v", err)
	}
}

func TestRegistry_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	yml := `version: 1
language: en
aliases: [custom]
detectors:
  - id: only-this
    category: promo
    pattern: "buy now"
case_keep: [OK]
`
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := mustRegistry(t, Options{OverrideDir: dir})
	p, err := r.Load("custom")
	if err != nil {
		t.Fatalf("Load(custom): %v", err)
	}
	if len(p.Detectors) != 1 || p.Detectors[0].ID != "only-this" {
		t.Fatalf("override not applied: %+v", p.Detectors)
	}
	if p.Detectors[0].Scope != ScopeSingle {
		t.Fatalf("scope default = %q", p.Detectors[0].Scope)
	}
	if !p.Detectors[0].Re.MatchString("BUY NOW") {
		t.Fatalf("detector should be case-insensitive")
	}
}

func TestRegistry_OverrideErrors(t *testing.T) {
	t.Run("bad regexp", func(t *testing.T) {
		dir := t.TempDir()
		body := `{"version":1,"language":"xx","detectors":[{"id":"x","category":"c","pattern":"(unclosed"}]}`
		_ = os.WriteFile(filepath.Join(dir, "xx.json"), []byte(body), 0o644)
		_, err := NewRegistry(Options{OverrideDir: dir})
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("want validation error, got %v", err)
		}
	})
	t.Run("bad version", func(t *testing.T) {
		dir := t.TempDir()
		_ = os.WriteFile(filepath.Join(dir, "xx.json"), []byte(`{"version":2,"language":"xx","detectors":[]}`), 0o644)
		_, err := NewRegistry(Options{OverrideDir: dir})
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("want validation error, got %v", err)
		}
	})
	t.Run("bad json", func(t *testing.T) {
		dir := t.TempDir()
		_ = os.WriteFile(filepath.Join(dir, "xx.json"), []byte(`{`), 0o644)
		_, err := NewRegistry(Options{OverrideDir: dir})
		if !perr.IsCode(err, perr.ErrorCodeJSON) {
			t.Fatalf("want JSON error, got %v", err)
		}
	})
	t.Run("missing dir", func(t *testing.T) {
		_, err := NewRegistry(Options{OverrideDir: filepath.Join(t.TempDir(), "nope")})
		if !perr.IsCode(err, perr.ErrorCodeIO) {
			t.Fatalf("want IO error, got %v", err)
		}
	})
}

func TestExpandSets(t *testing.T) {
	sets := flattenSets(map[string][]string{"SITES": {"a.b", " c ", "c", ""}})
	cases := []struct{ in, want string }{
		{`\b{SITES}\b`, `\b(?:a\.b|c)\b`},
		{`x{2,}`, `x{2,}`},
		{`{UNKNOWN} {SITES}`, `{UNKNOWN} (?:a\.b|c)`},
		{`no braces`, `no braces`},
	}
	for _, c := range cases {
		if got := expandSets(c.in, sets); got != c.want {
			t.Fatalf("expandSets(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompile_KeywordsFromSet(t *testing.T) {
	p, err := Compile(&Raw{
		Version:  SchemaVersion,
		Language: "T",
		Sets:     map[string][]string{"S": {"Foo.Bar", "Baz"}},
		Keywords: []RawKeyword{{Term: "{S}", Category: "promo", Gapped: true}, {Term: "Subtítulos", Category: "credit"}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Language != "t" {
		t.Fatalf("language not lowercased: %q", p.Language)
	}
	if len(p.Keywords) != 3 {
		t.Fatalf("keywords = %+v", p.Keywords)
	}
	if p.Keywords[0].Term != "foo.bar" || p.Keywords[0].Compact != "foobar" {
		t.Fatalf("keyword[0] = %+v", p.Keywords[0])
	}
	if p.Keywords[2].Term != textkey.Term("subtitulos") || p.Keywords[2].Compact != "" {
		t.Fatalf("keyword[2] = %+v", p.Keywords[2])
	}
}

func TestMerge_UnionInPrecedenceOrder(t *testing.T) {
	r := mustRegistry(t, Options{})
	en, _ := r.Load("en")
	def, _ := r.Load("default")

	m := Merge(en, def, en)
	if m.Language != "en" || m.Name() != "en+default" {
		t.Fatalf("merged name = %q (%q)", m.Name(), m.Language)
	}
	if len(m.Detectors) != len(en.Detectors)+len(def.Detectors) {
		t.Fatalf("detectors = %d, want %d", len(m.Detectors), len(en.Detectors)+len(def.Detectors))
	}
	if m.Detectors[0].ID != en.Detectors[0].ID {
		t.Fatalf("precedence lost: first = %q", m.Detectors[0].ID)
	}
	if len(m.SDH) != len(def.SDH) {
		t.Fatalf("regexps duplicated: %d vs %d", len(m.SDH), len(def.SDH))
	}
	if !slices.Contains(m.CaseKeep, "OK") {
		t.Fatalf("case keep not merged: %v", m.CaseKeep)
	}
}
