package normalize

import (
	"slices"
	"strings"
	"sync"
	"testing"

	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"
)

var (
	regOnce sync.Once
	reg     *profile.Registry
	regErr  error
)

func mustProfile(t *testing.T, langs ...string) *profile.Profile {
	t.Helper()
	regOnce.Do(func() { reg, regErr = profile.NewRegistry(profile.Options{}) })
	if regErr != nil {
		t.Fatalf("NewRegistry: %v", regErr)
	}
	p, err := reg.Load(langs...)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func text(lines ...string) subtitle.Cue { return subtitle.Cue{Lines: lines} }

func allOn() Options {
	return Options{
		JoinLines:           true,
		RemoveSDH:           true,
		RemoveSpeakerLabels: true,
		RemoveDialogMarkers: true,
		RemoveTags:          true,
		PreserveTags:        []string{"i"},
		Delimiters:          profile.DelimClasses,
		RemoveMusic:         true,
		NormalizeCase:       true,
	}
}

func TestNormalize_Steps(t *testing.T) {
	cases := []struct {
		name  string
		opts  Options
		in    []string
		want  []string
		steps []Step
	}{
		{
			name:  "join lines",
			opts:  Options{JoinLines: true},
			in:    []string{"Hello", "  world  "},
			want:  []string{"Hello world"},
			steps: []Step{StepJoin},
		},
		{
			name:  "sdh at line start repeats",
			opts:  Options{RemoveSDH: true},
			in:    []string{"(laughing) [sighs] Yes", "[door slams]", "Who's there?"},
			want:  []string{"Yes", "Who's there?"},
			steps: []Step{StepSDH},
		},
		{
			name: "sdh mid line is kept",
			opts: Options{RemoveSDH: true},
			in:   []string{"I said [sic] no"},
			want: []string{"I said [sic] no"},
		},
		{
			name:  "sdh behind a dialog dash keeps the dash",
			opts:  Options{RemoveSDH: true},
			in:    []string{"- [laughs] Sure."},
			want:  []string{"- Sure."},
			steps: []Step{StepSDH},
		},
		{
			name:  "speaker labels",
			opts:  Options{RemoveSpeakerLabels: true},
			in:    []string{"JOHN: Hello", "MR. SMITH: Hi", "Note: lower case is not a label"},
			want:  []string{"Hello", "Hi", "Note: lower case is not a label"},
			steps: []Step{StepSpeaker},
		},
		{
			name: "speaker label with too many words",
			opts: Options{RemoveSpeakerLabels: true},
			in:   []string{"THE PEOPLE OF THE STATE: guilty"},
			want: []string{"THE PEOPLE OF THE STATE: guilty"},
		},
		{
			name:  "dialog markers",
			opts:  Options{RemoveDialogMarkers: true},
			in:    []string{"- Yes?", "–– No.", "well-known"},
			want:  []string{"Yes?", "No.", "well-known"},
			steps: []Step{StepDialog},
		},
		{
			name:  "preserve list",
			opts:  Options{RemoveTags: true, PreserveTags: []string{"i"}},
			in:    []string{"<i>hello</i> <b>world</b>"},
			want:  []string{"<i>hello</i> world"},
			steps: []Step{StepTags},
		},
		{
			name:  "profile preserve list when none given",
			opts:  Options{RemoveTags: true},
			in:    []string{`<font color="red">x</font> <span>y</span>`},
			want:  []string{`<font color="red">x</font> y`},
			steps: []Step{StepTags},
		},
		{
			name:  "strip list beats preserve list",
			opts:  Options{RemoveTags: true, PreserveTags: []string{"c"}},
			in:    []string{"<c.yellow>warn</c>"},
			want:  []string{"warn"},
			steps: []Step{StepTags},
		},
		{
			name:  "ass overrides and stray brackets",
			opts:  Options{RemoveTags: true, PreserveTags: []string{}},
			in:    []string{`{\an8}I <3 you`, "a < b"},
			want:  []string{"I <3 you", "a < b"},
			steps: []Step{StepTags},
		},
		{
			name: "delimiters anywhere",
			opts: Options{Delimiters: []profile.DelimClass{profile.DelimParen, profile.DelimCurly, profile.DelimAsterisk}},
			in:   []string{"Hello (world) {x} there", "*sigh* fine", "(open only"},
			want: []string{"Hello there", "fine", "(open only"},
			steps: []Step{
				DelimStep(profile.DelimCurly),
				DelimStep(profile.DelimParen),
				DelimStep(profile.DelimAsterisk),
			},
		},
		{
			name:  "case normalization",
			opts:  Options{NormalizeCase: true},
			in:    []string{"THIS IS A TEST.", "OK", "<i>WHERE ARE YOU GOING? HOME.</i>"},
			want:  []string{"This is a test.", "OK", "<i>Where are you going? Home.</i>"},
			steps: []Step{StepCase},
		},
		{
			name:  "case keep words",
			opts:  Options{NormalizeCase: true},
			in:    []string{"I'M FINE, OK? I THINK SO."},
			want:  []string{"I'm fine, OK? I think so."},
			steps: []Step{StepCase},
		},
		{
			name: "single word and mixed case untouched",
			opts: Options{NormalizeCase: true},
			in:   []string{"NASA", "Hello THERE friend"},
			want: []string{"NASA", "Hello THERE friend"},
		},
	}
	p := mustProfile(t, "en", "default")
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := New(p, c.opts).Normalize(text(c.in...))
			if out.Drop {
				t.Fatalf("unexpected drop %q", out.Reason)
			}
			if !slices.Equal(out.Lines, c.want) {
				t.Fatalf("lines = %q, want %q", out.Lines, c.want)
			}
			if !slices.Equal(out.Steps, c.steps) {
				t.Fatalf("steps = %v, want %v", out.Steps, c.steps)
			}
		})
	}
}

func TestNormalize_Drops(t *testing.T) {
	p := mustProfile(t, "default")
	custom := Options{Custom: []string{`j"`, `re:^\d+$`, "re:("}}
	cases := []struct {
		name   string
		opts   Options
		in     []string
		reason string
		detail string
	}{
		{"custom literal", custom, []string{`He said j"ok`}, CategoryCustom, `j"`},
		{"custom regex", custom, []string{"12345"}, CategoryCustom, `re:^\d+$`},
		{"invalid regex is literal", custom, []string{"a (b"}, CategoryCustom, "re:("},
		{"music glyph", Options{RemoveMusic: true}, []string{"♪ la la la ♪"}, CategoryMusic, "♪"},
		{"empty after sdh", Options{RemoveSDH: true}, []string{"[MUSIC PLAYING]"}, CategoryEmpty, ""},
		{"blank cue", Options{}, []string{"", "  "}, CategoryEmpty, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := New(p, c.opts).Normalize(text(c.in...))
			if !out.Drop || out.Reason != c.reason || out.Detail != c.detail {
				t.Fatalf("outcome = %+v, want drop %q %q", out, c.reason, c.detail)
			}
		})
	}

	out := New(p, Options{}).Normalize(text("♪ la la la ♪"))
	if out.Drop {
		t.Fatalf("music kept when disabled, got drop %q", out.Reason)
	}
	out = New(p, custom).Normalize(text("plain words"))
	if out.Drop {
		t.Fatalf("custom dropped a clean line")
	}
}

func TestNormalize_JoinRunsBeforeAnchoredSteps(t *testing.T) {
	p := mustProfile(t, "default")
	out := New(p, Options{JoinLines: true, RemoveSDH: true}).Normalize(text("Hello", "[noise] there"))
	if want := "Hello [noise] there"; strings.Join(out.Lines, "\n") != want {
		t.Fatalf("lines = %q, want %q", out.Lines, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	p := mustProfile(t, "en", "default")
	n := New(p, allOn())
	inputs := [][]string{
		{"- JOHN: <b>HELLO THERE</b> (whispers)", "GOOD TO SEE YOU."},
		{"<i>- [sighs] fine</i>"},
		{"{x} MARY: we need to talk"},
		{"<u>- (door creaks)</u>", "- WHO IS IT?"},
		{"*laughs* #tag# ok then"},
	}
	for _, in := range inputs {
		first := n.Normalize(text(in...))
		if first.Drop {
			continue
		}
		second := n.Normalize(text(first.Lines...))
		if !slices.Equal(first.Lines, second.Lines) || len(second.Steps) != 0 {
			t.Fatalf("not idempotent for %q: %q -> %q (steps %v)", in, first.Lines, second.Lines, second.Steps)
		}
	}
}

func TestNormalize_AllOn(t *testing.T) {
	p := mustProfile(t, "en", "default")
	out := New(p, allOn()).Normalize(text("- JOHN: <b>HELLO THERE</b> (whispers)", "GOOD TO SEE YOU."))
	if want := []string{"Hello there good to see you."}; !slices.Equal(out.Lines, want) {
		t.Fatalf("lines = %q, want %q", out.Lines, want)
	}
}

func TestNormalize_SharedAcrossGoroutines(t *testing.T) {
	n := New(mustProfile(t, "en", "default"), Options{NormalizeCase: true})
	in := []string{"THIS IS A TEST.", "WHERE ARE YOU GOING? HOME.", "I'M FINE, OK? I THINK SO."}
	want := []string{"This is a test.", "Where are you going? Home.", "I'm fine, OK? I think so."}

	var wg sync.WaitGroup
	errs := make(chan string, 8*len(in))
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < 50; r++ {
				for i, s := range in {
					if got := n.Normalize(text(s)).Lines; !slices.Equal(got, []string{want[i]}) {
						errs <- strings.Join(got, "|")
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent normalize produced %q", e)
	}
}
