package classifier

import (
	"strings"
	"testing"
	"time"

	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func cue(seq, startMs, endMs int, text string) subtitle.Cue {
	return subtitle.Cue{Index: seq, Seq: seq, Start: ms(startMs), End: ms(endMs), Lines: strings.Split(text, "\n")}
}

func doc(cues ...subtitle.Cue) *subtitle.Document {
	return &subtitle.Document{Cues: cues}
}

// filler returns n ordinary dialogue cues starting at seq from, 3s apart
func filler(from, n int) []subtitle.Cue {
	out := make([]subtitle.Cue, 0, n)
	for i := 0; i < n; i++ {
		s := from + i
		out = append(out, cue(s, s*3000, s*3000+2000, "We should get going before it gets dark."))
	}
	return out
}

func mustLoad(t *testing.T, langs ...string) *profile.Profile {
	t.Helper()
	r, err := profile.NewRegistry(profile.Options{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p, err := r.Load(langs...)
	if err != nil {
		t.Fatalf("Load(%v): %v", langs, err)
	}
	return p
}

func mustCompile(t *testing.T, raw profile.Raw) *profile.Profile {
	t.Helper()
	raw.Version = profile.SchemaVersion
	if raw.Language == "" {
		raw.Language = "test"
	}
	p, err := profile.Compile(&raw)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func TestClassify_ExtendRemovesContinuation(t *testing.T) {
	cues := filler(1, 5)
	cues = append(cues,
		cue(6, 20000, 22000, "Visit www.example.com for more"),
		cue(7, 22100, 22900, "Enjoy!"),
		cue(8, 30000, 32500, "Where were we?"),
	)
	cues = append(cues, filler(9, 4)...)
	plan := New(mustLoad(t, "default"), Options{}).Classify(doc(cues...))

	m, ok := plan.Removed(6)
	if !ok || m.Detector != "url" || m.Extended {
		t.Fatalf("trigger mark = %+v, %v", m, ok)
	}
	m, ok = plan.Removed(7)
	if !ok || !m.Extended || m.Trigger != 6 || m.Category != "advertisement" {
		t.Fatalf("continuation mark = %+v, %v", m, ok)
	}
	if _, ok := plan.Removed(8); ok {
		t.Fatalf("cue after the gap must survive")
	}
	if plan.Len() != 2 {
		t.Fatalf("plan = %v", plan.Seqs())
	}
}

func TestClassify_SingleScopeDoesNotExtend(t *testing.T) {
	p := mustCompile(t, profile.Raw{Detectors: []profile.RawDetector{
		{ID: "rate", Category: "promo", Pattern: `rate this`, Scope: profile.ScopeSingle},
	}})
	cues := filler(1, 4)
	cues = append(cues, cue(5, 15000, 17000, "Please rate this"), cue(6, 17100, 17500, "Ok"))
	cues = append(cues, filler(7, 4)...)
	plan := New(p, Options{}).Classify(doc(cues...))
	if _, ok := plan.Removed(5); !ok {
		t.Fatalf("single match not marked")
	}
	if _, ok := plan.Removed(6); ok {
		t.Fatalf("single scope extended to the next cue")
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	p := mustCompile(t, profile.Raw{Detectors: []profile.RawDetector{
		{ID: "first", Category: "a", Pattern: `sponsor`},
		{ID: "second", Category: "b", Pattern: `sponsored`, Scope: profile.ScopeExtend},
	}})
	plan := New(p, Options{}).Classify(doc(cue(1, 0, 2000, "SPONSORED content")))
	m, _ := plan.Removed(1)
	if m.Detector != "first" || m.Category != "a" {
		t.Fatalf("mark = %+v", m)
	}
}

func TestClassify_ExtendRunCap(t *testing.T) {
	p := mustCompile(t, profile.Raw{Detectors: []profile.RawDetector{
		{ID: "ad", Category: "promo", Pattern: `buy now`, Scope: profile.ScopeExtend, Continuation: `^more`},
	}})
	d := doc(
		cue(1, 0, 2000, "Buy now"),
		cue(2, 2000, 4000, "more one"),
		cue(3, 4000, 6000, "more two"),
		cue(4, 6000, 8000, "more three"),
	)
	plan := New(p, Options{MaxRun: 2}).Classify(d)
	if plan.Len() != 3 {
		t.Fatalf("plan = %v, want seqs 1..3", plan.Seqs())
	}
	if _, ok := plan.Removed(4); ok {
		t.Fatalf("run cap not honoured")
	}
}

func TestClassify_ContinuationPattern(t *testing.T) {
	p := mustCompile(t, profile.Raw{Detectors: []profile.RawDetector{
		{ID: "credit", Category: "credit", Pattern: `subtitles by`, Scope: profile.ScopeExtend, Continuation: `team`},
	}})
	d := doc(
		cue(1, 0, 3000, "Subtitles by"),
		cue(2, 3500, 7000, "The Amazing Translation Team and friends of the show"),
		cue(3, 7500, 11000, "A long ordinary line of dialogue that is not short at all"),
	)
	plan := New(p, Options{}).Classify(d)
	if _, ok := plan.Removed(2); !ok {
		t.Fatalf("continuation pattern not applied")
	}
	if _, ok := plan.Removed(3); ok {
		t.Fatalf("long unrelated cue removed")
	}
}

func TestClassify_BoundaryJunk(t *testing.T) {
	cues := []subtitle.Cue{cue(1, 0, 400, "...")}
	cues = append(cues, filler(2, 3)...)
	cues = append(cues, cue(5, 15000, 15400, "..."))
	cues = append(cues, filler(6, 3)...)
	cues = append(cues, cue(9, 40000, 43000, "~~~"))

	plan := New(mustLoad(t, "default"), Options{}).Classify(doc(cues...))
	m, ok := plan.Removed(1)
	if !ok || m.Category != CategoryBoundaryJunk {
		t.Fatalf("leading junk = %+v, %v", m, ok)
	}
	if _, ok := plan.Removed(5); ok {
		t.Fatalf("mid-document junk removed")
	}
	if _, ok := plan.Removed(9); ok {
		t.Fatalf("long trailing junk removed")
	}
	var suspects []int
	for _, s := range plan.Suspects {
		suspects = append(suspects, s.Seq)
	}
	if len(suspects) != 2 || suspects[0] != 5 || suspects[1] != 9 {
		t.Fatalf("suspects = %v, want [5 9]", suspects)
	}
}

func TestClassify_BoundaryWindowFollowsEdgeRuns(t *testing.T) {
	var cues []subtitle.Cue
	for i := 1; i <= 20; i++ {
		cues = append(cues, cue(i, (i-1)*500, (i-1)*500+400, "..."))
	}
	cues = append(cues, filler(21, 2)...)
	cues = append(cues, cue(23, 70000, 70400, "--"))
	cues = append(cues, filler(24, 4)...)
	for i := 28; i <= 35; i++ {
		cues = append(cues, cue(i, 100000+i*500, 100000+i*500+400, "~"))
	}

	plan := New(mustLoad(t, "default"), Options{}).Classify(doc(cues...))
	for _, seq := range []int{1, 10, 20, 23, 28, 35} {
		if m, ok := plan.Removed(seq); !ok || m.Category != CategoryBoundaryJunk {
			t.Fatalf("seq %d = %+v, %v", seq, m, ok)
		}
	}
	if plan.Len() != 29 {
		t.Fatalf("marked %d cues, want 29: %v", plan.Len(), plan.Seqs())
	}
	for _, seq := range []int{21, 22, 24, 27} {
		if _, ok := plan.Removed(seq); ok {
			t.Fatalf("dialogue cue %d removed", seq)
		}
	}
}

func TestClassify_Keywords(t *testing.T) {
	p := mustLoad(t, "en", "default")
	cases := []struct {
		text   string
		marked bool
	}{
		{"Try NordVPN today", true},
		{"nordvpnx is not a word", false},
		{"w w w . y i f y . c o m", true},
		{"Did you hear about the hay if you know", false},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			d := doc(append(filler(1, 4), append([]subtitle.Cue{cue(5, 15000, 17000, c.text)}, filler(6, 4)...)...)...)
			plan := New(p, Options{}).Classify(d)
			m, ok := plan.Removed(5)
			if ok != c.marked {
				t.Fatalf("marked = %v (%+v), want %v", ok, m, c.marked)
			}
			if ok && !strings.HasPrefix(m.Detector, "keyword:") {
				t.Fatalf("detector = %q", m.Detector)
			}
		})
	}

	off := New(p, Options{DisableKeywords: true}).Classify(doc(cue(1, 0, 2000, "Try NordVPN today")))
	if off.Len() != 0 {
		t.Fatalf("keywords disabled but plan = %v", off.Seqs())
	}
}

func TestClassify_AccentedCredit(t *testing.T) {
	p := mustLoad(t, "es", "default")
	d := doc(append(filler(1, 4), append([]subtitle.Cue{cue(5, 15000, 17000, "SUBTÍTULOS POR\nEquipo Nocturno")}, filler(6, 4)...)...)...)
	m, ok := New(p, Options{}).Classify(d).Removed(5)
	if !ok || m.Detector != "es-subtitulos-por" {
		t.Fatalf("mark = %+v, %v", m, ok)
	}
}

func TestClassify_ReentrantAndOrderFree(t *testing.T) {
	c := New(mustLoad(t, "default"), Options{})
	d := doc(cue(1, 0, 2000, "Hello there"))
	done := make(chan *Plan, 8)
	for i := 0; i < cap(done); i++ {
		go func() { done <- c.Classify(d) }()
	}
	for i := 0; i < cap(done); i++ {
		if p := <-done; p.Len() != 0 {
			t.Fatalf("plan = %v", p.Seqs())
		}
	}
}

func TestAutomaton(t *testing.T) {
	a := newAutomaton()
	for i, term := range []string{"he", "she", "his", "hers"} {
		a.add(term, i)
	}
	a.build()
	var got []string
	a.scan("ushers", func(start, end, id int) bool {
		got = append(got, "ushers"[start:end])
		return true
	})
	want := []string{"she", "he", "hers"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("matches = %v, want %v", got, want)
	}
}

func TestSpacedRuns(t *testing.T) {
	got := spacedRuns("visit w w w . s i t e . c o m now a b")
	if len(got) != 1 || got[0] != "wwwsitecom" {
		t.Fatalf("spacedRuns = %v", got)
	}
}
