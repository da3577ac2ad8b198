// Package normalize rewrites the text of surviving cues.
// Steps run in a fixed order and each sees the output of the previous one
// 1 line join
// 2 SDH annotations at line start
// 3 speaker labels
// 4 dialog markers
// 5 formatting tags outside the preserve list
// 6 delimiter classes anywhere in the text
// 7 custom list, a hit drops the cue
// 8 music glyphs, a hit drops the cue
// 9 case normalization of fully upper-case lines
//
// A cue left with no text is dropped as empty-after-clean
package normalize

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Drop reasons
const (
	CategoryEmpty  = "empty-after-clean"
	CategoryCustom = "custom"
	CategoryMusic  = "music"
)

// Step names a text transformation; they double as report statistic keys
type Step string

const (
	StepJoin    Step = "line-join"
	StepSDH     Step = "sdh"
	StepSpeaker Step = "speaker-label"
	StepDialog  Step = "dialog-marker"
	StepTags    Step = "formatting-tags"
	StepCase    Step = "case"
)

// DelimStep is the step name of a delimiter class
func DelimStep(c profile.DelimClass) Step { return Step("delimiter-" + string(c)) }

// Defaults for the case normalization thresholds
const (
	DefaultCaseMinLetters = 4
	DefaultCaseUpperRatio = 1.0
)

// CustomRegexPrefix marks a custom entry as a regular expression
const CustomRegexPrefix = "re:"

// fixpoint bound for the anchored strip steps
const maxPasses = 8

// Options is the read-only feature set for one run
type Options struct {
	JoinLines           bool `json:"join_lines" yaml:"join_lines"`
	RemoveSDH           bool `json:"remove_sdh" yaml:"remove_sdh"`
	RemoveSpeakerLabels bool `json:"remove_speaker_labels" yaml:"remove_speaker_labels"`
	RemoveDialogMarkers bool `json:"remove_dialog_markers" yaml:"remove_dialog_markers"`
	RemoveTags          bool `json:"remove_tags" yaml:"remove_tags"`
	// PreserveTags are tag names kept verbatim when RemoveTags is set.
	// nil falls back to the profile's preserve list; an empty slice preserves nothing
	PreserveTags []string             `json:"preserve_tags" yaml:"preserve_tags"`
	Delimiters   []profile.DelimClass `json:"delimiters" yaml:"delimiters"`
	// Custom entries are substrings, or regular expressions when prefixed with "re:"
	Custom        []string `json:"custom" yaml:"custom"`
	RemoveMusic   bool     `json:"remove_music" yaml:"remove_music"`
	NormalizeCase bool     `json:"normalize_case" yaml:"normalize_case"`
	// CaseMinLetters is the fewest cased letters a line needs before it is judged
	CaseMinLetters int `json:"case_min_letters" yaml:"case_min_letters"`
	// CaseUpperRatio is the share of upper-case letters that makes a line "fully upper"
	CaseUpperRatio float64 `json:"case_upper_ratio" yaml:"case_upper_ratio"`
}

// Outcome is the result of normalizing one cue
type Outcome struct {
	Lines  []string
	Drop   bool
	Reason string // drop category
	Detail string // custom entry or glyph that caused the drop
	Steps  []Step // steps that changed the text, in order
}

type customEntry struct {
	raw string
	lit string
	re  *regexp.Regexp
}

// Normalizer applies Options with one profile. Safe for concurrent use
type Normalizer struct {
	p    *profile.Profile
	opts Options

	preserve map[string]struct{}
	custom   []customEntry
	keep     map[string]string
	upper    func(string) string
	lower    func(string) string
}

// New prepares a Normalizer; invalid custom regexes fall back to literal matching
func New(p *profile.Profile, opts Options) *Normalizer {
	if opts.CaseMinLetters <= 0 {
		opts.CaseMinLetters = DefaultCaseMinLetters
	}
	if opts.CaseUpperRatio <= 0 || opts.CaseUpperRatio > 1 {
		opts.CaseUpperRatio = DefaultCaseUpperRatio
	}
	n := &Normalizer{p: p, opts: opts, preserve: map[string]struct{}{}, keep: map[string]string{}}

	names := opts.PreserveTags
	if names == nil {
		names = p.Tags.Preserve
	}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && !slices.Contains(p.Tags.Strip, name) {
			n.preserve[name] = struct{}{}
		}
	}

	for _, c := range opts.Custom {
		if c == "" {
			continue
		}
		e := customEntry{raw: c, lit: c}
		if rest, ok := strings.CutPrefix(c, CustomRegexPrefix); ok && rest != "" {
			if re, err := regexp.Compile(rest); err == nil {
				e.re = re
			} else {
				e.lit = rest
			}
		}
		n.custom = append(n.custom, e)
	}

	// a cases.Caser holds state, so each call gets its own
	tag := language.Make(p.Language)
	n.lower = func(s string) string { return cases.Lower(tag).String(s) }
	n.upper = func(s string) string { return cases.Upper(tag).String(s) }
	for _, w := range p.CaseKeep {
		if k := keepKey(w); k != "" {
			n.keep[k] = w
		}
	}
	return n
}

// Normalize runs the enabled steps on cue and reports what changed. It never fails
func (n *Normalizer) Normalize(cue subtitle.Cue) Outcome {
	var out Outcome
	text := trimLines(cue.Text())

	apply := func(step Step, enabled bool, fn func(string) string) {
		if !enabled {
			return
		}
		next := fn(text)
		if next != text {
			next = tidy(next)
		}
		if next != text {
			if !slices.Contains(out.Steps, step) {
				out.Steps = append(out.Steps, step)
			}
			text = next
		}
	}

	// a later step can expose an anchored match for an earlier one ("<i>- [sighs]"),
	// so the text steps repeat until nothing changes
	for pass := 0; pass < maxPasses; pass++ {
		before := text
		apply(StepJoin, n.opts.JoinLines, joinLines)
		apply(StepSDH, n.opts.RemoveSDH, func(s string) string { return stripAnchored(s, n.p.SDH) })
		apply(StepSpeaker, n.opts.RemoveSpeakerLabels, n.stripSpeakers)
		apply(StepDialog, n.opts.RemoveDialogMarkers, func(s string) string { return stripAnchored(s, n.p.Dialog) })
		apply(StepTags, n.opts.RemoveTags, n.stripTags)
		for _, cls := range profile.DelimClasses {
			if !slices.Contains(n.opts.Delimiters, cls) {
				continue
			}
			pairs := n.p.Delimiters[cls]
			apply(DelimStep(cls), true, func(s string) string { return stripPairs(s, pairs) })
		}
		if text == before {
			break
		}
	}

	if text != "" {
		if hit, ok := n.customHit(text); ok {
			out.Drop, out.Reason, out.Detail = true, CategoryCustom, hit
			out.Lines = splitLines(text)
			return out
		}
		if n.opts.RemoveMusic {
			for _, g := range n.p.Music {
				if strings.Contains(text, g) {
					out.Drop, out.Reason, out.Detail = true, CategoryMusic, g
					out.Lines = splitLines(text)
					return out
				}
			}
		}
	}

	apply(StepCase, n.opts.NormalizeCase, n.sentenceCase)

	out.Lines = splitLines(text)
	if len(out.Lines) == 0 {
		out.Drop, out.Reason = true, CategoryEmpty
	}
	return out
}

func (n *Normalizer) customHit(text string) (string, bool) {
	for _, e := range n.custom {
		if e.re != nil {
			if e.re.MatchString(text) {
				return e.raw, true
			}
			continue
		}
		if strings.Contains(text, e.lit) {
			return e.raw, true
		}
	}
	return "", false
}

func joinLines(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// stripAnchored removes line-start matches of res until nothing changes.
// A first capture group holds leading markup or dialog dashes and is kept
func stripAnchored(s string, res []*regexp.Regexp) string {
	for pass := 0; pass < maxPasses; pass++ {
		prev := s
		for _, re := range res {
			s = re.ReplaceAllString(s, "${1}")
		}
		if s == prev {
			break
		}
		s = tidy(s)
	}
	return s
}

// stripSpeakers removes a NAME: label per line when the name has no lower-case
// letters and at most three words. The last capture group is the name; text before
// it (dialog dash, markup) stays
func (n *Normalizer) stripSpeakers(s string) string {
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		for pass := 0; pass < maxPasses; pass++ {
			from, to := speakerSpan(ln, n.p.Speaker)
			if to == 0 {
				break
			}
			ln = ln[:from] + strings.TrimLeft(ln[to:], " \t")
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

func speakerSpan(line string, res []*regexp.Regexp) (int, int) {
	for _, re := range res {
		m := re.FindStringSubmatchIndex(line)
		if m == nil || m[0] != 0 || m[1] == 0 {
			continue
		}
		from, name := 0, line[:m[1]]
		if g := len(m)/2 - 1; g >= 1 && m[2*g] >= 0 {
			from, name = m[2*g], line[m[2*g]:m[2*g+1]]
		}
		if isSpeakerName(name) {
			return from, m[1]
		}
	}
	return 0, 0
}

func isSpeakerName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(strings.Fields(name)) > 3 {
		return false
	}
	letters := 0
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters > 0
}

// tidy trims every line, collapses inner space runs and drops blank lines
func tidy(s string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.Join(strings.FieldsFunc(ln, isSpace), " ")
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

// trimLines trims every line and drops blank ones
func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func isSpace(r rune) bool { return r != '\n' && unicode.IsSpace(r) }

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
