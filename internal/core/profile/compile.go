package profile

import (
	"fmt"
	"regexp"
	"strings"

	"subsift/internal/core/textkey"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/validate"
)

// SchemaVersion is the only profile file version understood
const SchemaVersion = 1

// RawDetector is the file form of a detector
type RawDetector struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	Category     string `json:"category" yaml:"category" validate:"required"`
	Pattern      string `json:"pattern" yaml:"pattern" validate:"required"`
	Scope        Scope  `json:"scope" yaml:"scope" validate:"omitempty,oneof=single extend"`
	Continuation string `json:"continuation,omitempty" yaml:"continuation,omitempty"`
}

// RawKeyword is the file form of a keyword
type RawKeyword struct {
	Term     string `json:"term" yaml:"term" validate:"required"`
	Category string `json:"category" yaml:"category" validate:"required"`
	Gapped   bool   `json:"gapped,omitempty" yaml:"gapped,omitempty"`
}

// RawTags is the file form of the tag policy
type RawTags struct {
	Preserve []string `json:"preserve,omitempty" yaml:"preserve,omitempty"`
	Strip    []string `json:"strip,omitempty" yaml:"strip,omitempty"`
}

// Raw is a profile file as stored in profiles/*.json or an override directory
type Raw struct {
	Version    int                       `json:"version" yaml:"version" validate:"eq=1"`
	Language   string                    `json:"language" yaml:"language" validate:"required"`
	Aliases    []string                  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Sets       map[string][]string       `json:"sets,omitempty" yaml:"sets,omitempty"`
	Detectors  []RawDetector             `json:"detectors" yaml:"detectors" validate:"dive"`
	Keywords   []RawKeyword              `json:"keywords,omitempty" yaml:"keywords,omitempty" validate:"dive"`
	Junk       []string                  `json:"junk,omitempty" yaml:"junk,omitempty" validate:"dive,required"`
	SDH        []string                  `json:"sdh,omitempty" yaml:"sdh,omitempty" validate:"dive,required,regexp"`
	Speaker    []string                  `json:"speaker,omitempty" yaml:"speaker,omitempty" validate:"dive,required,regexp"`
	Dialog     []string                  `json:"dialog,omitempty" yaml:"dialog,omitempty" validate:"dive,required,regexp"`
	Tags       RawTags                   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Delimiters map[DelimClass][][2]string `json:"delimiters,omitempty" yaml:"delimiters,omitempty"`
	Music      []string                  `json:"music,omitempty" yaml:"music,omitempty"`
	CaseKeep   []string                  `json:"case_keep,omitempty" yaml:"case_keep,omitempty"`
}

// Compile validates r and builds the immutable Profile. Detector, continuation and
// junk patterns run against the folded cue key and compile case-insensitive; SDH,
// speaker and dialog patterns run on cue text line by line and compile as written
func Compile(r *Raw) (*Profile, error) {
	if err := validate.Struct(r); err != nil {
		return nil, perr.WithOp(err, "profile.compile")
	}
	key := strings.ToLower(strings.TrimSpace(r.Language))
	p := &Profile{
		Language:   key,
		Sources:    []string{key},
		Delimiters: make(map[DelimClass][]Pair, len(r.Delimiters)),
		Music:      r.Music,
		CaseKeep:   r.CaseKeep,
	}
	sets := flattenSets(r.Sets)

	for i, d := range r.Detectors {
		exp := expandSets(d.Pattern, sets)
		re, err := regexp.Compile("(?i)" + exp)
		if err != nil {
			return nil, invalidPattern(err, key, fmt.Sprintf("detectors[%d].pattern", i))
		}
		det := Detector{
			ID:       d.ID,
			Category: d.Category,
			Pattern:  exp,
			Scope:    d.Scope,
			Re:       re,
			Source:   key,
		}
		if det.Scope == "" {
			det.Scope = ScopeSingle
		}
		if d.Continuation != "" {
			cre, err := regexp.Compile("(?i)" + expandSets(d.Continuation, sets))
			if err != nil {
				return nil, invalidPattern(err, key, fmt.Sprintf("detectors[%d].continuation", i))
			}
			det.Continuation = cre
		}
		p.Detectors = append(p.Detectors, det)
	}

	for _, k := range r.Keywords {
		for _, term := range expandTerm(k.Term, sets) {
			kw := Keyword{Term: textkey.Term(term), Category: k.Category, Gapped: k.Gapped, Source: key}
			if k.Gapped {
				kw.Compact = textkey.Compact(term)
			}
			if kw.Term != "" {
				p.Keywords = append(p.Keywords, kw)
			}
		}
	}

	var err error
	if p.Junk, err = compileAll(r.Junk, "(?i)", sets, key, "junk"); err != nil {
		return nil, err
	}
	if p.SDH, err = compileAll(r.SDH, "(?m)", sets, key, "sdh"); err != nil {
		return nil, err
	}
	if p.Speaker, err = compileAll(r.Speaker, "(?m)", sets, key, "speaker"); err != nil {
		return nil, err
	}
	if p.Dialog, err = compileAll(r.Dialog, "(?m)", sets, key, "dialog"); err != nil {
		return nil, err
	}

	p.Tags.Preserve = lowerAll(r.Tags.Preserve)
	p.Tags.Strip = lowerAll(r.Tags.Strip)
	for cls, pairs := range r.Delimiters {
		for _, pr := range pairs {
			if pr[0] == "" || pr[1] == "" {
				return nil, perr.WithField(
					perr.Validationf("profile %s: empty delimiter in class %s", key, cls), "delimiters")
			}
			p.Delimiters[cls] = append(p.Delimiters[cls], Pair{Open: pr[0], Close: pr[1]})
		}
	}
	return p, nil
}

func compileAll(src []string, flags string, sets map[string][]string, lang, field string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(src))
	for i, s := range src {
		re, err := regexp.Compile(flags + expandSets(s, sets))
		if err != nil {
			return nil, invalidPattern(err, lang, fmt.Sprintf("%s[%d]", field, i))
		}
		out = append(out, re)
	}
	return out, nil
}

func invalidPattern(err error, lang, field string) error {
	return perr.WithField(perr.Wrapf(err, perr.ErrorCodeValidation, "profile %s: invalid pattern", lang), field)
}

// flattenSets trims and dedupes set members; membership stays case-sensitive since
// patterns compile case-insensitive anyway
func flattenSets(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, vals := range in {
		seen := make(map[string]struct{}, len(vals))
		var acc []string
		for _, v := range vals {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			acc = append(acc, v)
		}
		out[name] = acc
	}
	return out
}

// expandSets replaces {NAME} with a non-capturing group of OR'ed, regex-quoted values.
// Unknown names and regex repetition braces like {2,} are left untouched
func expandSets(pattern string, sets map[string][]string) string {
	if len(sets) == 0 {
		return pattern
	}
	var b strings.Builder
	rest := pattern
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			b.WriteString(rest)
			break
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			b.WriteString(rest)
			break
		}
		j += i
		name := rest[i+1 : j]
		values, ok := sets[name]
		if !ok || len(values) == 0 {
			b.WriteString(rest[:j+1])
			rest = rest[j+1:]
			continue
		}
		parts := make([]string, 0, len(values))
		for _, v := range values {
			parts = append(parts, regexp.QuoteMeta(v))
		}
		b.WriteString(rest[:i])
		b.WriteString("(?:" + strings.Join(parts, "|") + ")")
		rest = rest[j+1:]
	}
	return b.String()
}

// expandTerm turns a keyword that is exactly "{NAME}" into one keyword per set member
func expandTerm(term string, sets map[string][]string) []string {
	t := strings.TrimSpace(term)
	if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
		if vals, ok := sets[t[1:len(t)-1]]; ok {
			return vals
		}
	}
	return []string{t}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
