// Package pipeline runs the cleaning stages over one subtitle document:
// parse, classify, normalize, post-process and serialize.
//
// The stages repeat over their own output until a round changes nothing, so
// cleaning an already cleaned file is a no-op. Process is synchronous, does no
// I/O and is safe to call from many goroutines with a shared Engine
package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"subsift/internal/core/classifier"
	"subsift/internal/core/langhint"
	"subsift/internal/core/normalize"
	"subsift/internal/core/postprocess"
	"subsift/internal/core/profile"
	"subsift/internal/core/subtitle"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"

	"github.com/google/uuid"
)

// WarnScriptMismatch flags text whose letters do not fit the language tag
const WarnScriptMismatch subtitle.WarningKind = "script-mismatch"

// Config is the read-only feature set of one run
type Config struct {
	Text               normalize.Options  `json:"text" yaml:"text"`
	Detection          classifier.Options `json:"detection" yaml:"detection"`
	MergeIdenticalCues bool               `json:"merge_identical_cues" yaml:"merge_identical_cues"`

	// Profiles, when set, names the profiles to compose and bypasses the selection flags
	Profiles               []string `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	UseDefaults            bool     `json:"use_defaults" yaml:"use_defaults"`
	UseEnglishOnAll        bool     `json:"use_english_on_all" yaml:"use_english_on_all"`
	RequireLanguageProfile bool     `json:"require_language_profile" yaml:"require_language_profile"`
}

// DefaultConfig mirrors a fresh settings file: ad and noise detection on,
// every text rewrite off, default profile added, language profile required
func DefaultConfig() Config {
	return Config{
		Detection:              classifier.DefaultOptions(),
		UseDefaults:            true,
		RequireLanguageProfile: true,
	}
}

func (c Config) selection() profile.Selection {
	return profile.Selection{
		UseDefaults:            c.UseDefaults,
		UseEnglishOnAll:        c.UseEnglishOnAll,
		RequireLanguageProfile: c.RequireLanguageProfile,
	}
}

// Engine binds a profile registry to the pipeline
type Engine struct {
	reg *profile.Registry
}

// NewEngine returns an Engine over reg
func NewEngine(reg *profile.Registry) *Engine {
	return &Engine{reg: reg}
}

// Registry exposes the engine's profiles
func (e *Engine) Registry() *profile.Registry { return e.reg }

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default returns an Engine over the embedded profiles only
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		var reg *profile.Registry
		reg, defaultErr = profile.NewRegistry(profile.Options{})
		if defaultErr == nil {
			defaultEngine = NewEngine(reg)
		}
	})
	return defaultEngine, defaultErr
}

// Process cleans raw with the embedded profiles
func Process(raw, lang string, cfg Config) (string, *Report, error) {
	e, err := Default()
	if err != nil {
		return "", nil, err
	}
	return e.Process(context.Background(), raw, lang, cfg)
}

// Process parses raw, cleans it and returns the serialized result with its report.
// Errors: Parse (unreadable block), EmptyDocument (no cues), ProfileNotFound.
// Removing every cue is not an error; the output is then empty
func (e *Engine) Process(ctx context.Context, raw, lang string, cfg Config) (string, *Report, error) {
	doc, err := subtitle.Parse(raw)
	if err != nil {
		return "", nil, err
	}
	if len(doc.Cues) == 0 {
		return "", nil, perr.WithOp(perr.EmptyDocumentf("input has no cues"), "pipeline.process")
	}
	doc.Language = lang

	out, rep, err := e.Clean(ctx, doc, cfg)
	if err != nil {
		return "", nil, err
	}
	return subtitle.Serialize(out), rep, nil
}

// Clean runs the stages on an already parsed document. doc is not modified
func (e *Engine) Clean(ctx context.Context, doc *subtitle.Document, cfg Config) (*subtitle.Document, *Report, error) {
	began := time.Now()
	p, err := e.profileFor(doc.Language, cfg)
	if err != nil {
		return nil, nil, err
	}

	rep := newReport(doc, p)
	log := logger.C(logger.WithRun(ctx, rep.RunID, "")).With().Str("component", "pipeline").Logger()

	cls := classifier.New(p, cfg.Detection)
	norm := normalize.New(p, cfg.Text)
	post := postprocess.Options{MergeIdentical: cfg.MergeIdenticalCues}

	cur := doc.Clone()
	original := make(map[int]subtitle.Cue, len(cur.Cues))
	for _, c := range cur.Cues {
		original[c.Seq] = c
	}
	steps := map[int][]normalize.Step{}

	// After the first round normalization and overlap repair are settled, so
	// every later round that changes anything removes or merges a cue.
	// The loop ends at a fixpoint well before this bound
	maxRounds := len(cur.Cues) + 2
	rounds := 0
	for rounds < maxRounds {
		rounds++
		changed := false

		plan := cls.Classify(cur)
		if rounds == 1 {
			rep.Suspects = plan.Suspects
		}
		kept := make([]subtitle.Cue, 0, len(cur.Cues))
		for _, c := range cur.Cues {
			if m, ok := plan.Removed(c.Seq); ok {
				rep.remove(original[c.Seq], c, m.Category, m.Detector, "", StageClassify)
				changed = true
				continue
			}
			o := norm.Normalize(c)
			if o.Drop {
				rep.remove(original[c.Seq], c, o.Reason, "", o.Detail, StageNormalize)
				changed = true
				continue
			}
			if len(o.Steps) > 0 {
				for _, s := range o.Steps {
					if !slices.Contains(steps[c.Seq], s) {
						steps[c.Seq] = append(steps[c.Seq], s)
					}
				}
				c.Lines = o.Lines
				changed = true
			}
			kept = append(kept, c)
		}

		res := postprocess.Apply(kept, post)
		rep.Merges = append(rep.Merges, res.Merges...)
		rep.Overlaps = append(rep.Overlaps, res.Overlaps...)
		rep.Reordered = appendNew(rep.Reordered, res.Reordered...)
		if len(res.Merges)+len(res.Overlaps)+len(res.Reordered) > 0 {
			changed = true
		}

		log.Debug().
			Int("round", rounds).
			Int("marked", plan.Len()).
			Int("kept", len(res.Cues)).
			Int("merged", len(res.Merges)).
			Int("clamped", len(res.Overlaps)).
			Msg("stage round")

		cur = &subtitle.Document{Cues: res.Cues, Language: doc.Language, LineEnding: doc.LineEnding}
		if !changed {
			break
		}
	}

	rep.finish(cur, original, steps)
	if h, bad := langhint.Mismatch(doc.Language, joinedText(doc)); bad {
		rep.Warnings = append(rep.Warnings, subtitle.Warning{
			Kind:    WarnScriptMismatch,
			Message: "text is mostly " + h.Script + " which does not fit language " + doc.Language,
		})
	}

	log.Debug().
		Str("profile", p.Name()).
		Int("in", rep.InputCues).
		Int("out", rep.OutputCues).
		Int("removed", len(rep.Removed)).
		Int("rounds", rounds).
		Dur("took", time.Since(began)).
		Msg("cleaned")
	return cur, rep, nil
}

func (e *Engine) profileFor(lang string, cfg Config) (*profile.Profile, error) {
	if len(cfg.Profiles) > 0 {
		return e.reg.Load(cfg.Profiles...)
	}
	return e.reg.Resolve(lang, cfg.selection())
}

func joinedText(doc *subtitle.Document) string {
	var b strings.Builder
	for _, c := range doc.Cues {
		for _, ln := range c.Lines {
			b.WriteString(ln)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func appendNew(dst []int, vs ...int) []int {
	for _, v := range vs {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func newRunID() string { return uuid.NewString() }
