// Package langhint provides script detection for subtitle text.
// It never picks a language: the caller supplies the tag, langhint only says
// whether the letters look like they belong to it
package langhint

import (
	"unicode"

	"golang.org/x/text/language"
)

// MinLetters is the fewest letters a text needs before a hint is trusted
const MinLetters = 20

// Hint is the predominant script of a text, as an ISO 15924 code
type Hint struct {
	Script  string  `json:"script"`
	Letters int     `json:"letters"`
	Share   float64 `json:"share"` // predominant script letters / all letters
}

// scripts in tie-break order; specific scripts win over Latin
var scripts = []struct {
	code  string
	table *unicode.RangeTable
}{
	{"Hira", unicode.Hiragana},
	{"Kana", unicode.Katakana},
	{"Hang", unicode.Hangul},
	{"Hani", unicode.Han},
	{"Arab", unicode.Arabic},
	{"Hebr", unicode.Hebrew},
	{"Thai", unicode.Thai},
	{"Grek", unicode.Greek},
	{"Cyrl", unicode.Cyrillic},
	{"Geor", unicode.Georgian},
	{"Armn", unicode.Armenian},
	{"Deva", unicode.Devanagari},
	{"Latn", unicode.Latin},
}

// Detect counts letters per script and returns the predominant one.
// Script is empty when s has no letters
func Detect(s string) Hint {
	counts := make([]int, len(scripts))
	total := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for i, sc := range scripts {
			if unicode.Is(sc.table, r) {
				counts[i]++
				break
			}
		}
	}

	h := Hint{Letters: total}
	best := 0
	for i, n := range counts {
		if n > best {
			best, h.Script = n, scripts[i].code
		}
	}
	if total > 0 {
		h.Share = float64(best) / float64(total)
	}
	return h
}

// Expected returns the scripts a language tag is normally written in.
// Unknown or script-less tags yield nil
func Expected(tag string) []string {
	t, err := language.Parse(tag)
	if err != nil {
		return nil
	}
	sc, conf := t.Script()
	if conf == language.No {
		return nil
	}
	switch code := sc.String(); code {
	case "Jpan":
		return []string{"Hira", "Kana", "Hani"}
	case "Kore":
		return []string{"Hang", "Hani"}
	case "Hans", "Hant":
		return []string{"Hani"}
	case "Zzzz", "Zyyy":
		return nil
	default:
		return []string{code}
	}
}

// Mismatch reports whether text is clearly written in a script its language
// tag does not use. Short texts and tags without a known script never mismatch
func Mismatch(tag, text string) (Hint, bool) {
	h := Detect(text)
	want := Expected(tag)
	if h.Letters < MinLetters || h.Script == "" || len(want) == 0 {
		return h, false
	}
	for _, w := range want {
		if w == h.Script {
			return h, false
		}
	}
	return h, true
}
