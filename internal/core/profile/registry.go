package profile

import (
	"embed"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.json
var embedded embed.FS

// DefaultKey names the language-agnostic profile
const DefaultKey = "default"

// DefaultCacheSize bounds the number of cached composites
const DefaultCacheSize = 64

// Options configures a Registry
type Options struct {
	// OverrideDir holds *.json / *.yaml profiles; a file with the same language
	// key as an embedded profile replaces it
	OverrideDir string
	CacheSize   int
}

// Selection is the caller policy for composing a profile from a language tag
type Selection struct {
	UseDefaults            bool // add the default profile after the language profile
	UseEnglishOnAll        bool // add en to every run
	RequireLanguageProfile bool // fail when the tag has no profile instead of falling back
}

// Registry owns the compiled profiles and a small cache of composites
type Registry struct {
	byKey map[string]*Profile
	alias map[string]string

	mu    sync.Mutex
	cache *lru.Cache[string, *Profile]
}

// NewRegistry compiles the embedded profiles and any overrides
func NewRegistry(opts Options) (*Registry, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Profile](size)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "profile cache")
	}
	r := &Registry{
		byKey: map[string]*Profile{},
		alias: map[string]string{},
		cache: cache,
	}

	sub, err := fs.Sub(embedded, "profiles")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "embedded profiles")
	}
	if err := r.loadFS(sub, "embedded"); err != nil {
		return nil, err
	}
	if opts.OverrideDir != "" {
		st, err := os.Stat(opts.OverrideDir)
		if err != nil {
			return nil, perr.IOf(err, "profiles dir %s", opts.OverrideDir)
		}
		if !st.IsDir() {
			return nil, perr.InvalidArgf("profiles dir %s is not a directory", opts.OverrideDir)
		}
		if err := r.loadFS(os.DirFS(opts.OverrideDir), opts.OverrideDir); err != nil {
			return nil, err
		}
	}
	if _, ok := r.byKey[DefaultKey]; !ok {
		return nil, perr.Internalf("profile %q missing", DefaultKey)
	}
	logger.Named("profile").Debug().
		Strs("languages", r.Languages()).
		Str("override_dir", opts.OverrideDir).
		Msg("profiles loaded")
	return r, nil
}

func (r *Registry) loadFS(fsys fs.FS, origin string) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return perr.IOf(err, "read profiles %s", origin)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		b, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return perr.IOf(err, "read profile %s/%s", origin, e.Name())
		}
		raw, err := decodeRaw(b, ext)
		if err != nil {
			return perr.WithField(err, e.Name())
		}
		p, err := Compile(raw)
		if err != nil {
			return perr.WithOp(err, "profile.load "+e.Name())
		}
		r.add(p, raw.Aliases)
	}
	return nil
}

func decodeRaw(b []byte, ext string) (*Raw, error) {
	var raw Raw
	if ext == ".json" {
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "decode profile")
		}
		return &raw, nil
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "decode profile")
	}
	return &raw, nil
}

// add registers p, replacing any previous profile with the same key
func (r *Registry) add(p *Profile, aliases []string) {
	r.byKey[p.Language] = p
	for _, a := range aliases {
		a = canonical(a)
		if a != "" && a != p.Language {
			r.alias[a] = p.Language
		}
	}
}

// Languages lists the available profile keys, sorted
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether tag resolves to a profile
func (r *Registry) Has(tag string) bool {
	_, ok := r.lookup(tag)
	return ok
}

// Load returns the composite for the given profile keys or language tags,
// in precedence order. Composites are cached by their resolved key list
func (r *Registry) Load(langs ...string) (*Profile, error) {
	if len(langs) == 0 {
		return nil, perr.WithField(perr.ProfileNotFoundf("no language given"), "language")
	}
	keys := make([]string, 0, len(langs))
	for _, l := range langs {
		key, ok := r.lookup(l)
		if !ok {
			return nil, perr.WithField(perr.ProfileNotFoundf("no profile for language %q", l), "language")
		}
		if !contains(keys, key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 1 {
		return r.byKey[keys[0]], nil
	}

	ck := strings.Join(keys, "+")
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache.Get(ck); ok {
		return p, nil
	}
	ps := make([]*Profile, 0, len(keys))
	for _, k := range keys {
		ps = append(ps, r.byKey[k])
	}
	p := Merge(ps...)
	r.cache.Add(ck, p)
	return p, nil
}

// Resolve composes the profile for a document language under sel.
// Order is language, then en when UseEnglishOnAll, then default when UseDefaults
func (r *Registry) Resolve(tag string, sel Selection) (*Profile, error) {
	var keys []string
	if strings.TrimSpace(tag) != "" {
		if key, ok := r.lookup(tag); ok {
			keys = append(keys, key)
		} else if sel.RequireLanguageProfile {
			return nil, perr.WithField(perr.ProfileNotFoundf("no profile for language %q", tag), "language")
		}
	} else if sel.RequireLanguageProfile {
		return nil, perr.WithField(perr.ProfileNotFoundf("no language given"), "language")
	}
	if sel.UseEnglishOnAll && r.Has("en") {
		keys = append(keys, "en")
	}
	if sel.UseDefaults || len(keys) == 0 {
		keys = append(keys, DefaultKey)
	}
	return r.Load(keys...)
}

// lookup maps a tag to a profile key: exact, alias, then the BCP 47 base language
func (r *Registry) lookup(tag string) (string, bool) {
	c := canonical(tag)
	if c == "" {
		return "", false
	}
	if _, ok := r.byKey[c]; ok {
		return c, true
	}
	if k, ok := r.alias[c]; ok {
		return k, true
	}
	t, err := language.Parse(c)
	if err != nil {
		return "", false
	}
	base, conf := t.Base()
	if conf == language.No {
		return "", false
	}
	b := base.String()
	if _, ok := r.byKey[b]; ok {
		return b, true
	}
	if k, ok := r.alias[b]; ok {
		return k, true
	}
	return "", false
}

func canonical(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "_", "-")
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
