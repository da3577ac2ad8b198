// Package profile loads and compiles language-scoped pattern profiles.
// A Profile is immutable after Compile and safe to share between concurrent runs
package profile

import (
	"regexp"
	"slices"
	"strings"
)

// Scope is the removal scope of a detector
type Scope string

const (
	// ScopeSingle marks only the matching cue
	ScopeSingle Scope = "single"
	// ScopeExtend also marks following cues while the continuation predicate holds
	ScopeExtend Scope = "extend"
)

// DelimClass names a general-purpose delimiter class
type DelimClass string

const (
	DelimSquare   DelimClass = "square"
	DelimParen    DelimClass = "paren"
	DelimCurly    DelimClass = "curly"
	DelimAsterisk DelimClass = "asterisk"
	DelimHashtag  DelimClass = "hashtag"
)

// DelimClasses lists the classes in the order they are applied
var DelimClasses = []DelimClass{DelimCurly, DelimParen, DelimSquare, DelimAsterisk, DelimHashtag}

// Pair is an open/close delimiter pair
type Pair struct {
	Open  string
	Close string
}

// Detector is a compiled ad/noise detector evaluated against the cue key
type Detector struct {
	ID           string
	Category     string
	Pattern      string // expanded source
	Scope        Scope
	Re           *regexp.Regexp
	Continuation *regexp.Regexp // optional, extend scope only
	Source       string         // profile that contributed it
}

// Keyword is a literal term matched with the keyword automaton
type Keyword struct {
	Term     string // Bare projection
	Compact  string // letters/digits only, set when Gapped
	Category string
	Gapped   bool
	Source   string
}

// Tags is the formatting tag policy
type Tags struct {
	Preserve []string // lowercased tag names kept verbatim when the caller gives no list
	Strip    []string // never preserved, whatever the caller asks
}

// Profile is a compiled language bundle, or a composite of several
type Profile struct {
	Language string
	Sources  []string // profile keys in precedence order

	Detectors []Detector
	Keywords  []Keyword
	Junk      []*regexp.Regexp
	SDH       []*regexp.Regexp
	Speaker   []*regexp.Regexp
	Dialog    []*regexp.Regexp

	Tags       Tags
	Delimiters map[DelimClass][]Pair
	Music      []string
	CaseKeep   []string // words restored verbatim after sentence casing (I, OK, TV...)
}

// Name renders the composite name ("en+default")
func (p *Profile) Name() string { return strings.Join(p.Sources, "+") }

// Merge builds a composite whose detector list is the union in precedence order.
// Duplicate detector ids and keyword terms keep their first occurrence
func Merge(ps ...*Profile) *Profile {
	out := &Profile{Delimiters: make(map[DelimClass][]Pair, len(DelimClasses))}
	seenDet := map[string]struct{}{}
	seenKw := map[string]struct{}{}
	seenSrc := map[string]struct{}{}

	for _, p := range ps {
		if p == nil {
			continue
		}
		if out.Language == "" {
			out.Language = p.Language
		}
		for _, s := range p.Sources {
			if _, ok := seenSrc[s]; ok {
				continue
			}
			seenSrc[s] = struct{}{}
			out.Sources = append(out.Sources, s)
		}
		for _, d := range p.Detectors {
			if _, ok := seenDet[d.ID]; ok {
				continue
			}
			seenDet[d.ID] = struct{}{}
			out.Detectors = append(out.Detectors, d)
		}
		for _, k := range p.Keywords {
			if _, ok := seenKw[k.Term]; ok {
				continue
			}
			seenKw[k.Term] = struct{}{}
			out.Keywords = append(out.Keywords, k)
		}
		out.Junk = appendRegexps(out.Junk, p.Junk)
		out.SDH = appendRegexps(out.SDH, p.SDH)
		out.Speaker = appendRegexps(out.Speaker, p.Speaker)
		out.Dialog = appendRegexps(out.Dialog, p.Dialog)

		out.Tags.Preserve = union(out.Tags.Preserve, p.Tags.Preserve)
		out.Tags.Strip = union(out.Tags.Strip, p.Tags.Strip)
		for _, cls := range DelimClasses {
			for _, pr := range p.Delimiters[cls] {
				if !slices.Contains(out.Delimiters[cls], pr) {
					out.Delimiters[cls] = append(out.Delimiters[cls], pr)
				}
			}
		}
		out.Music = union(out.Music, p.Music)
		out.CaseKeep = union(out.CaseKeep, p.CaseKeep)
	}
	return out
}

func appendRegexps(dst, src []*regexp.Regexp) []*regexp.Regexp {
	for _, re := range src {
		dup := false
		for _, have := range dst {
			if have.String() == re.String() {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, re)
		}
	}
	return dst
}

func union(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
