package pipeline

import (
	"slices"
	"strconv"
	"time"

	"subsift/internal/core/classifier"
	"subsift/internal/core/normalize"
	"subsift/internal/core/postprocess"
	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"

	"github.com/pmezard/go-difflib/difflib"
)

// Stage names where a cue was removed
type Stage string

const (
	StageClassify  Stage = "classify"
	StageNormalize Stage = "normalize"
)

// Stat keys that are not normalize step names
const (
	StatRemoved   = "cues_removed"
	StatMerged    = "cues_merged"
	StatClamped   = "overlaps_fixed"
	StatReordered = "cues_reordered"
	StatChanged   = "cues_changed"
)

// Removal is one dropped cue
type Removal struct {
	Seq      int           `json:"seq"`
	Index    int           `json:"index"` // index as read from input
	Start    time.Duration `json:"start"`
	End      time.Duration `json:"end"`
	Range    string        `json:"range"`
	Category string        `json:"category"`
	Detector string        `json:"detector,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Stage    Stage         `json:"stage"`
	Text     string        `json:"text"`
}

// Transform is one cue whose text was rewritten and kept
type Transform struct {
	Seq   int              `json:"seq"`
	Steps []normalize.Step `json:"steps"`
	Diff  string           `json:"diff"`
}

// Report is the change report of one run
type Report struct {
	RunID      string                `json:"run_id"`
	Language   string                `json:"language"`
	Profiles   []string              `json:"profiles"`
	InputCues  int                   `json:"input_cues"`
	OutputCues int                   `json:"output_cues"`
	Removed    []Removal             `json:"removed"`
	Transforms []Transform           `json:"transforms"`
	Merges     []postprocess.Merge   `json:"merges"`
	Overlaps   []postprocess.Overlap `json:"overlaps"`
	Reordered  []int                 `json:"reordered,omitempty"`
	Warnings   []subtitle.Warning    `json:"warnings"`
	Suspects   []classifier.Suspect  `json:"suspects"`
	Stats      map[string]int        `json:"stats"`
}

func newReport(doc *subtitle.Document, p *profile.Profile) *Report {
	return &Report{
		RunID:     newRunID(),
		Language:  doc.Language,
		Profiles:  slices.Clone(p.Sources),
		InputCues: len(doc.Cues),
		Warnings:  slices.Clone(doc.Warnings),
		Stats:     map[string]int{},
	}
}

// Changed reports whether the run altered the document at all
func (r *Report) Changed() bool {
	return len(r.Removed)+len(r.Transforms)+len(r.Merges)+len(r.Overlaps)+len(r.Reordered) > 0
}

// KeepRatio is OutputCues / InputCues
func (r *Report) KeepRatio() float64 {
	if r.InputCues == 0 {
		return 0
	}
	return float64(r.OutputCues) / float64(r.InputCues)
}

// Categories counts removals per category
func (r *Report) Categories() map[string]int {
	out := map[string]int{}
	for _, rm := range r.Removed {
		out[rm.Category]++
	}
	return out
}

func (r *Report) remove(orig, cur subtitle.Cue, category, detector, detail string, stage Stage) {
	r.Removed = append(r.Removed, Removal{
		Seq:      orig.Seq,
		Index:    orig.Index,
		Start:    cur.Start,
		End:      cur.End,
		Range:    cur.Range(),
		Category: category,
		Detector: detector,
		Detail:   detail,
		Stage:    stage,
		Text:     orig.Text(),
	})
}

// finish fills the output side: transforms against the input text and counters
func (r *Report) finish(out *subtitle.Document, original map[int]subtitle.Cue, steps map[int][]normalize.Step) {
	r.OutputCues = len(out.Cues)
	slices.SortFunc(r.Removed, func(a, b Removal) int { return a.Seq - b.Seq })

	for _, c := range out.Cues {
		s := steps[c.Seq]
		before := original[c.Seq].Text()
		after := c.Text()
		if len(s) == 0 || before == after {
			continue
		}
		r.Transforms = append(r.Transforms, Transform{Seq: c.Seq, Steps: s, Diff: cueDiff(c.Seq, before, after)})
		for _, st := range s {
			r.Stats[string(st)]++
		}
	}
	slices.SortFunc(r.Transforms, func(a, b Transform) int { return a.Seq - b.Seq })

	for _, rm := range r.Removed {
		r.Stats["removed:"+rm.Category]++
	}
	r.Stats[StatRemoved] = len(r.Removed)
	r.Stats[StatChanged] = len(r.Transforms)
	r.Stats[StatMerged] = len(r.Merges)
	r.Stats[StatClamped] = len(r.Overlaps)
	r.Stats[StatReordered] = len(r.Reordered)
}

// cueDiff renders a zero-context unified diff of one cue's text
func cueDiff(seq int, before, after string) string {
	name := "cue " + strconv.Itoa(seq)
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name + " (cleaned)",
		Context:  0,
	})
	if err != nil {
		return ""
	}
	return diff
}
