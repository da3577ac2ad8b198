package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceCase rewrites each fully upper-case line: lowercase everything, then
// capitalize the first letter of the line and of every sentence after . ! ? or …
// Words from the profile's keep list are restored afterwards
func (n *Normalizer) sentenceCase(s string) string {
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		if !n.shouty(ln) {
			continue
		}
		lines[i] = n.restoreKeep(n.capitalize(n.lower(ln)))
	}
	return strings.Join(lines, "\n")
}

// shouty reports whether a line is upper-case enough to rewrite. Lines with too few
// cased letters, or a single word (acronyms, interjections), are left alone
func (n *Normalizer) shouty(line string) bool {
	line = visible(line)
	var upper, cased int
	for _, r := range line {
		switch {
		case unicode.IsUpper(r):
			upper++
			cased++
		case unicode.IsLower(r):
			cased++
		}
	}
	if cased < n.opts.CaseMinLetters || len(strings.Fields(line)) < 2 {
		return false
	}
	return float64(upper)/float64(cased) >= n.opts.CaseUpperRatio
}

// visible drops markup tags so their names do not count as letters
func visible(line string) string {
	if !strings.Contains(line, "<") {
		return line
	}
	var b strings.Builder
	for i := 0; i < len(line); {
		if line[i] == '<' {
			if end, _, ok := scanTag(line, i); ok {
				i = end
				continue
			}
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String()
}

func (n *Normalizer) capitalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for i := 0; i < len(s); {
		if s[i] == '<' {
			if end, _, ok := scanTag(s, i); ok {
				b.WriteString(s[i:end])
				i = end
				continue
			}
		}
		r, sz := utf8.DecodeRuneInString(s[i:])
		switch {
		case start && unicode.IsLetter(r):
			b.WriteString(n.upper(s[i : i+sz]))
			start = false
		case r == '.' || r == '!' || r == '?' || r == '…':
			b.WriteRune(r)
			start = nextIsSpace(s, i+sz)
		default:
			if unicode.IsDigit(r) {
				start = false
			}
			b.WriteRune(r)
		}
		i += sz
	}
	return b.String()
}

func nextIsSpace(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

// restoreKeep swaps whole words found in the keep list back to their listed form
func (n *Normalizer) restoreKeep(s string) string {
	if len(n.keep) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == '<' {
			if end, _, ok := scanTag(s, i); ok {
				b.WriteString(s[i:end])
				i = end
				continue
			}
		}
		r, sz := utf8.DecodeRuneInString(s[i:])
		if !isKeepRune(r) {
			b.WriteString(s[i : i+sz])
			i += sz
			continue
		}
		j := i
		for j < len(s) {
			r2, sz2 := utf8.DecodeRuneInString(s[j:])
			if !isKeepRune(r2) {
				break
			}
			j += sz2
		}
		word := s[i:j]
		if w, ok := n.keep[keepKey(word)]; ok {
			word = w
		}
		b.WriteString(word)
		i = j
	}
	return b.String()
}

func isKeepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’'
}

func keepKey(w string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(w), "’", "'"))
}
