// Package subtitle holds the cue document model and the SRT parser/serializer
package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// Cue is one timed subtitle entry
type Cue struct {
	// Index is the advisory index read from input; output is renumbered 1..N
	Index int
	// Seq is the stable 1-based position in the parsed input, used as identity in reports
	Seq   int
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Text joins the cue lines with newlines
func (c Cue) Text() string { return strings.Join(c.Lines, "\n") }

// Duration returns End-Start (never negative for a parsed cue)
func (c Cue) Duration() time.Duration { return c.End - c.Start }

// Blank reports whether the cue has no non-whitespace line
func (c Cue) Blank() bool {
	for _, ln := range c.Lines {
		if strings.TrimSpace(ln) != "" {
			return false
		}
	}
	return true
}

// Range renders "start --> end" for logs and reports
func (c Cue) Range() string {
	return FormatTimestamp(c.Start) + " --> " + FormatTimestamp(c.End)
}

// WarningKind labels a tolerated input deviation
type WarningKind string

const (
	WarnMissingIndex   WarningKind = "missing-index"
	WarnDuplicateIndex WarningKind = "duplicate-index"
	WarnNonSequential  WarningKind = "non-sequential-index"
	WarnOutOfOrder     WarningKind = "out-of-order"
	WarnClampedEnd     WarningKind = "clamped-end"
	WarnTrailingBlock  WarningKind = "trailing-garbage"
)

// Warning is a reportable parse condition that did not abort the run
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Line    int         `json:"line"`
	Seq     int         `json:"seq,omitempty"`
	Message string      `json:"message"`
}

// Document is an ordered cue sequence plus the language tag that drives profile selection
type Document struct {
	Cues       []Cue
	Language   string
	Warnings   []Warning
	LineEnding string // "\n" or "\r\n", preserved on output
}

// Clone deep-copies the cue slice so pipeline stages never alias caller-owned documents
func (d *Document) Clone() *Document {
	out := &Document{
		Language:   d.Language,
		LineEnding: d.LineEnding,
		Cues:       make([]Cue, len(d.Cues)),
		Warnings:   append([]Warning(nil), d.Warnings...),
	}
	for i, c := range d.Cues {
		c.Lines = append([]string(nil), c.Lines...)
		out.Cues[i] = c
	}
	return out
}

// FormatTimestamp renders d as HH:MM:SS,mmm; hours widen past 99
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
