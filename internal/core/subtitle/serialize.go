package subtitle

import (
	"strconv"
	"strings"
)

// Serialize renders the document as SRT. Indices are emitted 1..N over the cues
// that carry text; blank cues and blank lines inside a cue are skipped since either
// would break the block structure on re-read
func Serialize(doc *Document) string {
	if doc == nil || len(doc.Cues) == 0 {
		return ""
	}
	nl := doc.LineEnding
	if nl == "" {
		nl = "\n"
	}

	var b strings.Builder
	n := 0
	for _, c := range doc.Cues {
		if c.Blank() {
			continue
		}
		n++
		b.WriteString(strconv.Itoa(n))
		b.WriteString(nl)
		b.WriteString(FormatTimestamp(c.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(c.End))
		b.WriteString(nl)
		for _, ln := range c.Lines {
			if strings.TrimSpace(ln) == "" {
				continue
			}
			b.WriteString(ln)
			b.WriteString(nl)
		}
		b.WriteString(nl)
	}
	return b.String()
}
