// Package batch cleans subtitle files on disk with a bounded worker pool.
// Each file is read, decoded to UTF-8, cleaned with the shared pipeline Engine
// and written back atomically, either in place or under an output directory
package batch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"subsift/internal/core/pipeline"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"

	"golang.org/x/sync/errgroup"
)

// Status of one file after a run
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusDryRun    Status = "dry-run"
	StatusGuarded   Status = "guarded" // keep ratio fell below the minimum
	StatusFailed    Status = "failed"
)

// Options for one batch run
type Options struct {
	// OutDir receives cleaned files, mirroring paths under Root; empty writes in place
	OutDir string
	// Root is the directory OutDir paths are made relative to
	Root            string
	DryRun          bool
	Workers         int
	MinKeepRatio    float64
	DefaultLanguage string
	// Language forces a tag for every file, ignoring file names
	Language string
}

// Result is the outcome for one file
type Result struct {
	Path     string           `json:"path"`
	Dest     string           `json:"dest,omitempty"`
	Language string           `json:"language"`
	Charset  string           `json:"charset"`
	Status   Status           `json:"status"`
	Error    string           `json:"error,omitempty"`
	Report   *pipeline.Report `json:"report,omitempty"`
	Output   string           `json:"-"`

	err error
}

// Err returns the failure, if any
func (r Result) Err() error { return r.err }

// Runner cleans files with one engine and configuration
type Runner struct {
	Engine *pipeline.Engine
	Config pipeline.Config
	Opts   Options
}

// Run cleans paths concurrently. Per-file failures are recorded in the results;
// the returned error is only set when ctx is cancelled. Results keep input order
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	workers := r.Opts.Workers
	if workers <= 0 {
		workers = 4
	}
	results := make([]Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.File(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// File cleans one file
func (r *Runner) File(ctx context.Context, path string) Result {
	res := Result{Path: path}
	began := time.Now()
	fail := func(err error) Result {
		res.Status, res.err, res.Error = StatusFailed, err, err.Error()
		logger.C(logger.WithRun(ctx, "", path)).Warn().Err(err).Msg("clean failed")
		return res
	}

	st, err := os.Stat(path)
	if err != nil {
		return fail(perr.IOf(err, "stat %s", path))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fail(perr.IOf(err, "read %s", path))
	}
	text, charset, err := Decode(raw)
	if err != nil {
		return fail(err)
	}
	res.Charset = charset

	res.Language = r.Opts.Language
	if res.Language == "" {
		res.Language = LanguageFromName(path)
	}
	if res.Language == "" {
		res.Language = r.Opts.DefaultLanguage
	}

	out, rep, err := r.Engine.Process(ctx, text, res.Language, r.Config)
	if err != nil {
		return fail(err)
	}
	res.Report, res.Output = rep, out
	log := logger.C(logger.WithRun(ctx, rep.RunID, path))

	switch {
	case rep.InputCues > 0 && rep.KeepRatio() < r.Opts.MinKeepRatio:
		res.Status = StatusGuarded
		log.Warn().
			Float64("keep_ratio", rep.KeepRatio()).
			Float64("min_keep_ratio", r.Opts.MinKeepRatio).
			Msg("too many cues removed, file left untouched")
		return res
	case r.Opts.DryRun:
		res.Status = StatusDryRun
		return res
	case !rep.Changed() && charset == CharsetUTF8 && r.Opts.OutDir == "":
		res.Status = StatusUnchanged
		return res
	}

	res.Dest, err = r.dest(path)
	if err != nil {
		return fail(err)
	}
	if err := writeAtomic(res.Dest, []byte(out), st.Mode().Perm()); err != nil {
		return fail(err)
	}
	res.Status = StatusWritten
	log.Info().
		Str("language", res.Language).
		Str("charset", charset).
		Int("in", rep.InputCues).
		Int("out", rep.OutputCues).
		Dur("took", time.Since(began)).
		Msg("cleaned")
	return res
}

func (r *Runner) dest(path string) (string, error) {
	if r.Opts.OutDir == "" {
		return path, nil
	}
	rel := filepath.Base(path)
	if r.Opts.Root != "" {
		if x, err := filepath.Rel(r.Opts.Root, path); err == nil && !filepath.IsAbs(x) && x != ".." && !hasParentPrefix(x) {
			rel = x
		}
	}
	return filepath.Join(r.Opts.OutDir, rel), nil
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// Summary totals a run
type Summary struct {
	Files     int            `json:"files"`
	ByStatus  map[Status]int `json:"by_status"`
	Removed   int            `json:"removed"`
	Changed   int            `json:"changed"`
	Languages map[string]int `json:"languages"`
}

// Summarize counts results
func Summarize(results []Result) Summary {
	s := Summary{ByStatus: map[Status]int{}, Languages: map[string]int{}}
	for _, r := range results {
		if r.Path == "" {
			continue
		}
		s.Files++
		s.ByStatus[r.Status]++
		if r.Language != "" {
			s.Languages[r.Language]++
		}
		if r.Report != nil {
			s.Removed += len(r.Report.Removed)
			s.Changed += len(r.Report.Transforms)
		}
	}
	return s
}

// Failed reports whether any result failed
func (s Summary) Failed() bool { return s.ByStatus[StatusFailed] > 0 }
