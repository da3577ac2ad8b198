package normalize

import (
	"strings"

	"subsift/internal/core/profile"
)

// stripTags removes markup tags whose name is not preserved. A '<' that does not
// open a well-formed tag ("<3", "a < b") is left as text. ASS override blocks
// such as {\an8} go with the tags
func (n *Normalizer) stripTags(s string) string {
	if !strings.ContainsAny(s, "<{") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch s[i] {
		case '<':
			end, name, ok := scanTag(s, i)
			if !ok {
				b.WriteByte(s[i])
				i++
				continue
			}
			if _, keep := n.preserve[name]; keep {
				b.WriteString(s[i:end])
			}
			i = end
		case '{':
			if i+1 < len(s) && s[i+1] == '\\' {
				if j := strings.IndexByte(s[i:], '}'); j > 0 {
					i += j + 1
					continue
				}
			}
			b.WriteByte(s[i])
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// scanTag reads a tag starting at s[i] == '<' and returns the index after '>'
// and the lowercased tag name
func scanTag(s string, i int) (end int, name string, ok bool) {
	j := i + 1
	if j < len(s) && s[j] == '/' {
		j++
	}
	start := j
	for j < len(s) && isNameByte(s[j], j == start) {
		j++
	}
	if j == start {
		return 0, "", false
	}
	name = strings.ToLower(s[start:j])
	for k := j; k < len(s); k++ {
		switch s[k] {
		case '>':
			return k + 1, name, true
		case '<', '\n':
			return 0, "", false
		}
	}
	return 0, "", false
}

func isNameByte(c byte, first bool) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return true
	}
	return !first && (c >= '0' && c <= '9' || c == '-' || c == ':')
}

// stripPairs removes every open...close span, shortest match first, across lines.
// An open delimiter without a close is kept
func stripPairs(s string, pairs []profile.Pair) string {
	for _, p := range pairs {
		s = stripPair(s, p.Open, p.Close)
	}
	return s
}

func stripPair(s, open, close string) string {
	if !strings.Contains(s, open) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	rest := s
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(open):], close)
		if j < 0 {
			break
		}
		b.WriteString(rest[:i])
		b.WriteByte(' ')
		rest = rest[i+len(open)+j+len(close):]
	}
	b.WriteString(rest)
	return b.String()
}
