// Package classifier marks advertisement and noise cues for removal.
// Detectors are evaluated in profile order against each cue's folded key and
// the first match wins. Extend-scope detectors open an explicit extending state
// that keeps marking following cues while the continuation predicate holds
package classifier

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"
	"subsift/internal/core/textkey"
)

// CategoryBoundaryJunk tags short junk cues removed at the document edges
const CategoryBoundaryJunk = "boundary-junk"

// DetectorJunk is the detector id reported for junk pattern hits
const DetectorJunk = "junk"

// Defaults for Options fields left at zero
const (
	DefaultMaxGap              = 2 * time.Second
	DefaultMaxRun              = 3
	DefaultShortDuration       = time.Second
	DefaultShortText           = 32
	DefaultBoundaryWindow      = 3
	DefaultBoundaryMaxDuration = time.Second
)

// Options tunes the continuation predicate and boundary junk handling
type Options struct {
	// MaxGap is the largest silence between the previous marked cue and a continuation
	MaxGap time.Duration `json:"max_gap" yaml:"max_gap"`
	// MaxRun caps how many cues one extend match may add after the trigger
	MaxRun int `json:"max_run" yaml:"max_run"`
	// ShortDuration and ShortText describe a generic trailing cue: both must hold
	ShortDuration time.Duration `json:"short_duration" yaml:"short_duration"`
	ShortText     int           `json:"short_text" yaml:"short_text"`
	// BoundaryWindow is the number of cues at each end treated as boundary cues
	BoundaryWindow int `json:"boundary_window" yaml:"boundary_window"`
	// BoundaryMaxDuration is the longest boundary cue that junk can remove
	BoundaryMaxDuration time.Duration `json:"boundary_max_duration" yaml:"boundary_max_duration"`
	// DisableKeywords skips the keyword automaton
	DisableKeywords bool `json:"disable_keywords" yaml:"disable_keywords"`
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.MaxGap <= 0 {
		o.MaxGap = DefaultMaxGap
	}
	if o.MaxRun <= 0 {
		o.MaxRun = DefaultMaxRun
	}
	if o.ShortDuration <= 0 {
		o.ShortDuration = DefaultShortDuration
	}
	if o.ShortText <= 0 {
		o.ShortText = DefaultShortText
	}
	if o.BoundaryWindow <= 0 {
		o.BoundaryWindow = DefaultBoundaryWindow
	}
	if o.BoundaryMaxDuration <= 0 {
		o.BoundaryMaxDuration = DefaultBoundaryMaxDuration
	}
	return o
}

// Mark is the reason a cue is in the plan
type Mark struct {
	Category string `json:"category"`
	Detector string `json:"detector"`
	Extended bool   `json:"extended,omitempty"` // marked by continuation, not by its own match
	Trigger  int    `json:"trigger"`            // seq of the cue whose match started the run
}

// Suspect is a junk match that was reported but kept
type Suspect struct {
	Seq      int    `json:"seq"`
	Detector string `json:"detector"`
}

// Plan is the removal plan for one document, keyed by cue Seq
type Plan struct {
	Marks    map[int]Mark
	Suspects []Suspect
}

// Removed returns the mark for seq, if any
func (p *Plan) Removed(seq int) (Mark, bool) {
	m, ok := p.Marks[seq]
	return m, ok
}

// Len is the number of marked cues
func (p *Plan) Len() int { return len(p.Marks) }

// Seqs returns the marked seqs ascending
func (p *Plan) Seqs() []int {
	out := make([]int, 0, len(p.Marks))
	for s := range p.Marks {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Classifier evaluates one compiled profile. Safe for concurrent use
type Classifier struct {
	p    *profile.Profile
	opts Options

	words  *automaton // keyword terms over the Bare shadow
	gapped *automaton // compact terms over spaced-out runs
}

// New builds a Classifier for p
func New(p *profile.Profile, opts Options) *Classifier {
	c := &Classifier{p: p, opts: opts.withDefaults()}
	c.words = newAutomaton()
	c.gapped = newAutomaton()
	for i, kw := range p.Keywords {
		c.words.add(kw.Term, i)
		c.gapped.add(kw.Compact, i)
	}
	c.words.build()
	c.gapped.build()
	return c
}

type state int

const (
	idle state = iota
	extending
)

// Classify scans doc once and returns the plan. It never fails
func (c *Classifier) Classify(doc *subtitle.Document) *Plan {
	plan := &Plan{Marks: map[int]Mark{}}
	n := len(doc.Cues)
	lead, trail := c.edgeRuns(doc.Cues)

	st := idle
	var (
		active  *profile.Detector
		trigger int
		last    int // index of the last marked cue in the run
		run     int
	)

	for i := range doc.Cues {
		cue := &doc.Cues[i]
		key := textkey.Key(cue.Text())

		if st == extending {
			if run < c.opts.MaxRun && c.continues(active, &doc.Cues[last], cue, key) {
				plan.Marks[cue.Seq] = Mark{Category: active.Category, Detector: active.ID, Extended: true, Trigger: trigger}
				last = i
				run++
				continue
			}
			st, active = idle, nil
		}

		if m, det, ok := c.match(key); ok {
			m.Trigger = cue.Seq
			plan.Marks[cue.Seq] = m
			if det != nil && det.Scope == profile.ScopeExtend {
				st, active, trigger, last, run = extending, det, cue.Seq, i, 0
			}
			continue
		}

		if key == "" || !c.junk(key) {
			continue
		}
		if c.boundary(i, n, lead, trail) && cue.Duration() <= c.opts.BoundaryMaxDuration {
			plan.Marks[cue.Seq] = Mark{Category: CategoryBoundaryJunk, Detector: DetectorJunk, Trigger: cue.Seq}
			continue
		}
		plan.Suspects = append(plan.Suspects, Suspect{Seq: cue.Seq, Detector: DetectorJunk})
	}
	return plan
}

// match runs the ordered detectors then the keyword automaton, stopping at the first hit
func (c *Classifier) match(key string) (Mark, *profile.Detector, bool) {
	if key == "" {
		return Mark{}, nil, false
	}
	sh := textkey.BuildShadows(key)
	for i := range c.p.Detectors {
		d := &c.p.Detectors[i]
		if d.Re.MatchString(sh.Base) || (sh.RepeatSquash != sh.Base && d.Re.MatchString(sh.RepeatSquash)) {
			return Mark{Category: d.Category, Detector: d.ID}, d, true
		}
	}
	if c.opts.DisableKeywords || len(c.p.Keywords) == 0 {
		return Mark{}, nil, false
	}
	if id, ok := c.keyword(sh.Bare); ok {
		kw := c.p.Keywords[id]
		return Mark{Category: kw.Category, Detector: "keyword:" + kw.Term}, nil, true
	}
	for _, run := range spacedRuns(sh.Bare) {
		hit := -1
		c.gapped.scan(run, func(_, _, id int) bool {
			if c.p.Keywords[id].Gapped {
				hit = id
				return false
			}
			return true
		})
		if hit >= 0 {
			kw := c.p.Keywords[hit]
			return Mark{Category: kw.Category, Detector: "keyword:" + kw.Term}, nil, true
		}
	}
	return Mark{}, nil, false
}

// keyword returns the first whole-word keyword hit in bare
func (c *Classifier) keyword(bare string) (int, bool) {
	hit := -1
	c.words.scan(bare, func(start, end, id int) bool {
		if boundaryOK(bare, start, end) {
			hit = id
			return false
		}
		return true
	})
	return hit, hit >= 0
}

// continues is the continuation predicate: the cue follows closely and either
// matches the detector's continuation pattern, is junk, or is short in both time and text
func (c *Classifier) continues(d *profile.Detector, prev, cue *subtitle.Cue, key string) bool {
	if cue.Start-prev.End > c.opts.MaxGap {
		return false
	}
	if d.Continuation != nil && d.Continuation.MatchString(key) {
		return true
	}
	if c.junk(key) {
		return true
	}
	return cue.Duration() <= c.opts.ShortDuration && utf8.RuneCountInString(key) <= c.opts.ShortText
}

func (c *Classifier) junk(key string) bool {
	for _, re := range c.p.Junk {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// edgeJunk is a cue that boundary handling would remove wherever the window sits
func (c *Classifier) edgeJunk(cue *subtitle.Cue) bool {
	if cue.Duration() > c.opts.BoundaryMaxDuration {
		return false
	}
	key := textkey.Key(cue.Text())
	return key != "" && c.junk(key)
}

// edgeRuns counts the short junk cues running inward from each end. The
// boundary window starts after them, so removing a run never exposes more
// boundary cues for a later pass
func (c *Classifier) edgeRuns(cues []subtitle.Cue) (lead, trail int) {
	n := len(cues)
	for lead < n && c.edgeJunk(&cues[lead]) {
		lead++
	}
	for trail < n-lead && c.edgeJunk(&cues[n-1-trail]) {
		trail++
	}
	return lead, trail
}

func (c *Classifier) boundary(i, n, lead, trail int) bool {
	w := c.opts.BoundaryWindow
	return i < lead+w || i >= n-trail-w
}

func boundaryOK(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); textkey.IsWord(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); textkey.IsWord(r) {
			return false
		}
	}
	return true
}

// spacedRuns joins runs of four or more single-rune tokens ("w w w . s i t e")
// into their letters and digits; gapped keywords only match inside such runs
func spacedRuns(bare string) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		if len(cur) >= 4 {
			if s := textkey.Compact(strings.Join(cur, "")); s != "" {
				out = append(out, s)
			}
		}
		cur = cur[:0]
	}
	for _, tok := range strings.Fields(bare) {
		if utf8.RuneCountInString(tok) == 1 {
			cur = append(cur, tok)
			continue
		}
		flush()
	}
	flush()
	return out
}
