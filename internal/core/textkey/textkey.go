// Package textkey builds the folded matching key that detectors and keywords run against.
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Remove zero-width format characters
// 5 Width fold
// 6 Collapse all whitespace (line breaks included) to single spaces and trim
//
// Combining marks survive in the key so accented regex patterns still match; the
// Bare projection drops them for literal keyword matching. The key is never written
// back to a cue, it only decides whether a cue matches
package textkey

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		// order matters and mirrors the documented pipeline
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,
		)
	},
}

var barePool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// Key returns the matching key of s
func Key(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ks, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		// the chain only fails on malformed input, which ToValidUTF8 already removed
		ks = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(ks), " ")
}

// Bare strips combining marks from a key ("subtítulos" -> "subtitulos")
func Bare(key string) string {
	if key == "" {
		return ""
	}
	tr := barePool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, key)
	tr.Reset()
	barePool.Put(tr)
	if err != nil {
		return key
	}
	return out
}

// Shadows bundles alternate projections of a key to catch spaced-out or stretched spellings
// ("w w w . s i t e . c o m", "subtiiiitles") without complicating the patterns
type Shadows struct {
	Base         string // Key output
	Bare         string // Base without combining marks
	NoPunct      string // Bare reduced to letters and digits
	RepeatSquash string // long character runs squashed to two
}

// BuildShadows constructs Shadows from a key in one pass per projection
func BuildShadows(key string) Shadows {
	bare := Bare(key)
	return Shadows{
		Base:         key,
		Bare:         bare,
		NoPunct:      stripNonWord(bare),
		RepeatSquash: squashRuns(key, 2),
	}
}

// Term is the Bare projection of a literal keyword
func Term(s string) string { return Bare(Key(s)) }

// Compact is the NoPunct projection of a literal keyword; used for gapped matching
func Compact(s string) string { return stripNonWord(Term(s)) }

func stripNonWord(s string) string {
	if s == "" {
		return s
	}
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b = append(b, r)
		}
	}
	return string(b)
}

func squashRuns(s string, max int) string {
	if s == "" || max < 1 {
		return s
	}
	out := make([]rune, 0, len(s))
	var prev rune
	count := 0
	for _, r := range s {
		if r == prev {
			count++
			if count <= max {
				out = append(out, r)
			}
			continue
		}
		prev = r
		count = 1
		out = append(out, r)
	}
	return string(out)
}

// IsWord reports whether r is considered a word character for boundary checks:
// letters, numbers, combining marks and connector punctuation
func IsWord(r rune) bool {
	if r == unicode.ReplacementChar || r == 0 {
		return false
	}
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Pc)
}
