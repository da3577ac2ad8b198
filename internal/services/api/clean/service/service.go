// Package service runs cleaning requests against the shared engine
package service

import (
	"bytes"
	"context"
	"time"

	"subsift/internal/core/pipeline"
	"subsift/internal/core/profile"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"
	"subsift/internal/services/api/clean/domain"
	"subsift/internal/settings"
)

// Service defines the service contract for cleaning
type Service interface{ domain.ServicePort }

// Svc implements the Service interface
type Svc struct {
	engine *pipeline.Engine
	base   *settings.File
}

// New creates a clean service. base holds the server side defaults each request starts from
func New(engine *pipeline.Engine, base *settings.File) *Svc {
	if engine == nil {
		panic("clean.Service requires a non nil Engine")
	}
	if base == nil {
		base = settings.Default()
	}
	return &Svc{engine: engine, base: base}
}

// Clean overlays the request options on the defaults and runs the pipeline
func (s *Svc) Clean(ctx context.Context, in domain.CleanInput) (domain.CleanOutput, error) {
	f, err := s.settingsFor(in.Options)
	if err != nil {
		return domain.CleanOutput{}, err
	}
	lang := in.Language
	if lang == "" {
		lang = f.Settings.DefaultLanguage
	}

	began := time.Now()
	text, rep, err := s.engine.Process(ctx, in.Text, lang, f.Config())
	if err != nil {
		return domain.CleanOutput{}, err
	}
	logger.C(logger.WithRun(ctx, rep.RunID, "")).Info().
		Str("language", lang).
		Strs("profiles", rep.Profiles).
		Int("in", rep.InputCues).
		Int("out", rep.OutputCues).
		Dur("took", time.Since(began)).
		Msg("cleaned")
	return domain.CleanOutput{Text: text, Report: rep}, nil
}

func (s *Svc) settingsFor(opts []byte) (*settings.File, error) {
	opts = bytes.TrimSpace(opts)
	if len(opts) == 0 || bytes.Equal(opts, []byte("null")) {
		return s.base, nil
	}
	f := s.base.Clone()
	if err := f.Decode(opts); err != nil {
		return nil, perr.WithOp(err, "clean.options")
	}
	return f, nil
}

// Profiles lists the loaded profiles with their detector counts
func (s *Svc) Profiles(_ context.Context) ([]domain.ProfileInfo, error) {
	reg := s.engine.Registry()
	langs := reg.Languages()
	out := make([]domain.ProfileInfo, 0, len(langs))
	for _, l := range langs {
		p, err := reg.Load(l)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ProfileInfo{
			Language:  l,
			Detectors: len(p.Detectors),
			Keywords:  len(p.Keywords),
			Default:   l == profile.DefaultKey,
		})
	}
	return out, nil
}
