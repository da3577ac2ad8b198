package subtitle

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	perr "subsift/internal/platform/errors"

	"github.com/dimchansky/utfbom"
)

// ParseError points at the block header that could not be read
type ParseError struct {
	Line   int    // 1-based line number in the input
	Offset int    // byte offset of that line in the input (BOM included)
	Text   string // offending line, truncated
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %s: %q", e.Line, e.Offset, e.Reason, e.Text)
}

// HH:MM:SS,mmm --> HH:MM:SS,mmm with '.' allowed as separator, 1-3 ms digits and
// trailing positional data (X1:.. Y1:..) after the end stamp
var timingRe = regexp.MustCompile(
	`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})(?:\s.*)?$`,
)

type line struct {
	text   string
	no     int
	offset int
}

// Parse reads an SRT document. Input indices are advisory: missing, duplicated and
// out of sequence indices become warnings. A block whose header cannot be read fails
// with a Parse error wrapping *ParseError, unless it is the last block of the input
func Parse(raw string) (*Document, error) {
	body, bomLen, err := stripBOM(raw)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "read input")
	}

	doc := &Document{LineEnding: "\n"}
	if strings.Contains(body, "\r\n") {
		doc.LineEnding = "\r\n"
	}

	blocks := splitBlocks(splitLines(body, bomLen))
	seen := make(map[int]int, len(blocks))
	prevIndex := 0

	for bi, blk := range blocks {
		c, warns, perrv := parseBlock(blk)
		if perrv != nil {
			if bi == len(blocks)-1 {
				doc.Warnings = append(doc.Warnings, Warning{
					Kind:    WarnTrailingBlock,
					Line:    perrv.Line,
					Message: "unreadable trailing block ignored: " + perrv.Reason,
				})
				break
			}
			return nil, perr.WithOp(perr.Wrapf(perrv, perr.ErrorCodeParse, "parse subtitle"), "subtitle.parse")
		}

		c.Seq = len(doc.Cues) + 1
		for i := range warns {
			warns[i].Seq = c.Seq
		}
		doc.Warnings = append(doc.Warnings, warns...)

		if c.Index > 0 {
			if first, dup := seen[c.Index]; dup {
				doc.Warnings = append(doc.Warnings, Warning{
					Kind: WarnDuplicateIndex, Line: blk[0].no, Seq: c.Seq,
					Message: fmt.Sprintf("index %d already used by cue %d", c.Index, first),
				})
			} else {
				seen[c.Index] = c.Seq
				if prevIndex > 0 && c.Index != prevIndex+1 {
					doc.Warnings = append(doc.Warnings, Warning{
						Kind: WarnNonSequential, Line: blk[0].no, Seq: c.Seq,
						Message: fmt.Sprintf("index %d follows %d", c.Index, prevIndex),
					})
				}
			}
			prevIndex = c.Index
		}

		if n := len(doc.Cues); n > 0 && c.Start < doc.Cues[n-1].Start {
			doc.Warnings = append(doc.Warnings, Warning{
				Kind: WarnOutOfOrder, Line: blk[0].no, Seq: c.Seq,
				Message: fmt.Sprintf("starts at %s before previous cue %s",
					FormatTimestamp(c.Start), FormatTimestamp(doc.Cues[n-1].Start)),
			})
		}
		doc.Cues = append(doc.Cues, c)
	}
	return doc, nil
}

func stripBOM(raw string) (string, int, error) {
	rd, enc := utfbom.Skip(strings.NewReader(raw))
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", 0, err
	}
	bomLen := 0
	switch enc {
	case utfbom.UTF8:
		bomLen = 3
	case utfbom.UTF16BigEndian, utfbom.UTF16LittleEndian:
		bomLen = 2
	case utfbom.UTF32BigEndian, utfbom.UTF32LittleEndian:
		bomLen = 4
	}
	return string(b), bomLen, nil
}

// splitLines accepts \r\n, \n and lone \r terminators and records where each line starts
func splitLines(s string, base int) []line {
	var out []line
	start, no := 0, 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			out = append(out, line{text: s[start:i], no: no, offset: base + start})
			start, no = i+1, no+1
		case '\r':
			out = append(out, line{text: s[start:i], no: no, offset: base + start})
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start, no = i+1, no+1
		}
	}
	if start < len(s) {
		out = append(out, line{text: s[start:], no: no, offset: base + start})
	}
	return out
}

// splitBlocks groups lines between blank separators; whitespace-only lines count as blank
func splitBlocks(lines []line) [][]line {
	var blocks [][]line
	var cur []line
	for _, ln := range lines {
		if strings.TrimSpace(ln.text) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, ln)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func parseBlock(blk []line) (Cue, []Warning, *ParseError) {
	var c Cue
	var warns []Warning

	head := blk[0]
	rest := blk[1:]
	timing := head

	if _, _, ok := parseTiming(head.text); ok {
		warns = append(warns, Warning{Kind: WarnMissingIndex, Line: head.no, Message: "cue has no index line"})
	} else {
		idx, err := strconv.Atoi(strings.TrimSpace(Sanitize(head.text)))
		if err != nil || idx < 0 {
			return c, nil, newParseError(head, "expected cue index or timing line")
		}
		c.Index = idx
		if len(rest) == 0 {
			return c, nil, newParseError(head, "cue index without timing line")
		}
		timing, rest = rest[0], rest[1:]
	}

	start, end, ok := parseTiming(timing.text)
	if !ok {
		return c, nil, newParseError(timing, "malformed timing line")
	}
	if end < start {
		warns = append(warns, Warning{
			Kind: WarnClampedEnd, Line: timing.no,
			Message: fmt.Sprintf("end %s before start %s", FormatTimestamp(end), FormatTimestamp(start)),
		})
		end = start
	}
	c.Start, c.End = start, end

	c.Lines = make([]string, 0, len(rest))
	for _, ln := range rest {
		c.Lines = append(c.Lines, strings.TrimRight(Sanitize(ln.text), " \t"))
	}
	return c, warns, nil
}

func parseTiming(s string) (time.Duration, time.Duration, bool) {
	m := timingRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	start, ok1 := stamp(m[1], m[2], m[3], m[4])
	end, ok2 := stamp(m[5], m[6], m[7], m[8])
	return start, end, ok1 && ok2
}

// maxHours keeps every stamp, and the sum of two, inside time.Duration
const maxHours = 1_000_000

// stamp treats the fraction as decimal: ",5" is 500ms and ",05" is 50ms
func stamp(hh, mm, ss, frac string) (time.Duration, bool) {
	h, err := strconv.Atoi(hh)
	if err != nil || h >= maxHours {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return 0, false
	}
	s, err := strconv.Atoi(ss)
	if err != nil || s > 59 {
		return 0, false
	}
	for len(frac) < 3 {
		frac += "0"
	}
	ms, err := strconv.Atoi(frac)
	if err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, true
}

func newParseError(ln line, reason string) *ParseError {
	txt := ln.text
	if len(txt) > 80 {
		txt = txt[:80]
	}
	return &ParseError{Line: ln.no, Offset: ln.offset, Text: txt, Reason: reason}
}
