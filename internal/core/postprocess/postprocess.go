// Package postprocess repairs the cue sequence after cleaning: identical
// neighbours are merged, starts are made non-decreasing, overlaps are clamped
// and the output is renumbered 1..N
package postprocess

import (
	"slices"
	"time"

	"subsift/internal/core/subtitle"
)

// Options for one post-processing pass
type Options struct {
	MergeIdentical bool `json:"merge_identical" yaml:"merge_identical"`
}

// Merge records one absorbed cue
type Merge struct {
	Into   int           `json:"into"`   // seq of the surviving cue
	Seq    int           `json:"seq"`    // seq of the absorbed cue
	NewEnd time.Duration `json:"new_end"`
}

// Overlap records one clamped end time
type Overlap struct {
	Seq    int           `json:"seq"`
	Next   int           `json:"next"`
	OldEnd time.Duration `json:"old_end"`
	NewEnd time.Duration `json:"new_end"`
}

// Result describes what Apply changed
type Result struct {
	Cues      []subtitle.Cue
	Merges    []Merge
	Overlaps  []Overlap
	Reordered []int // seqs whose position changed when sorting by start
}

// Apply runs sort, merge, overlap repair and reindexing on a copy of cues.
// Blank cues are dropped first so they can neither merge nor clamp a neighbour
func Apply(cues []subtitle.Cue, opts Options) Result {
	var res Result
	out := make([]subtitle.Cue, 0, len(cues))
	for _, c := range cues {
		if c.Blank() {
			continue
		}
		c.Lines = slices.Clone(c.Lines)
		out = append(out, c)
	}

	res.Reordered = sortByStart(out)
	if opts.MergeIdentical {
		out, res.Merges = mergeIdentical(out)
	}
	res.Overlaps = clampOverlaps(out)
	for i := range out {
		out[i].Index = i + 1
	}
	res.Cues = out
	return res
}

// sortByStart stable-sorts by start and returns the seqs that moved
func sortByStart(cues []subtitle.Cue) []int {
	if slices.IsSortedFunc(cues, byStart) {
		return nil
	}
	before := make([]int, len(cues))
	for i, c := range cues {
		before[i] = c.Seq
	}
	slices.SortStableFunc(cues, byStart)
	var moved []int
	for i, c := range cues {
		if c.Seq != before[i] {
			moved = append(moved, c.Seq)
		}
	}
	return moved
}

func byStart(a, b subtitle.Cue) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	}
	return 0
}

// mergeIdentical folds each run of neighbours with equal text into its first
// cue, which keeps its start and takes the latest end of the run
func mergeIdentical(cues []subtitle.Cue) ([]subtitle.Cue, []Merge) {
	if len(cues) < 2 {
		return cues, nil
	}
	var merges []Merge
	out := cues[:1]
	for _, c := range cues[1:] {
		last := &out[len(out)-1]
		if c.Text() != last.Text() {
			out = append(out, c)
			continue
		}
		last.End = max(last.End, c.End)
		merges = append(merges, Merge{Into: last.Seq, Seq: c.Seq, NewEnd: last.End})
	}
	// a merge can only grow End, so the fold above is already a fixpoint
	return out, merges
}

// clampOverlaps sets End = max(next.Start, Start) wherever a cue runs into the next.
// Starts are sorted, so the clamp never pushes End below Start
func clampOverlaps(cues []subtitle.Cue) []Overlap {
	var fixes []Overlap
	for i := 0; i+1 < len(cues); i++ {
		cur, next := &cues[i], cues[i+1]
		if cur.End <= next.Start {
			continue
		}
		newEnd := max(next.Start, cur.Start)
		fixes = append(fixes, Overlap{Seq: cur.Seq, Next: next.Seq, OldEnd: cur.End, NewEnd: newEnd})
		cur.End = newEnd
	}
	return fixes
}
