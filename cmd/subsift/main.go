// Command subsift removes ads and noise from .srt subtitle files.
//
//	subsift [flags] <file|dir>...    clean files in place (or under -out)
//	subsift [flags] -                read stdin, write the cleaned document to stdout
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"subsift/internal/batch"
	"subsift/internal/core/pipeline"
	"subsift/internal/core/profile"
	"subsift/internal/core/version"
	"subsift/internal/platform/config"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/logger"
	"subsift/internal/platform/validate"
	"subsift/internal/settings"
)

const service = "subsift"

func main() {
	opt := logger.FromEnv()
	opt.Service = service
	logger.Init(opt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	lang         string
	defaultLang  string
	settingsPath string
	out          string
	profilesDir  string
	profiles     string
	initConfig   string
	dryRun       bool
	jsonOut      bool
	showVersion  bool
	listProfiles bool
	workers      int
	minKeep      float64
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, error) {
	fs := flag.NewFlagSet(service, flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &flags{}
	fs.StringVar(&f.lang, "lang", "", "language tag for every file, overrides file names")
	fs.StringVar(&f.defaultLang, "default-lang", "", "language for files whose name carries none")
	fs.StringVar(&f.settingsPath, "settings", "", "settings file (default $SUBSIFT_SETTINGS)")
	fs.StringVar(&f.out, "out", "", "write cleaned files under this directory instead of in place")
	fs.StringVar(&f.profilesDir, "profiles-dir", "", "directory of profile overrides (*.json, *.yaml)")
	fs.StringVar(&f.profiles, "profiles", "", "comma-separated profiles to compose, bypasses language selection")
	fs.StringVar(&f.initConfig, "init-config", "", "write the default settings file to this path and exit")
	fs.BoolVar(&f.dryRun, "dry-run", false, "clean and report without writing files")
	fs.BoolVar(&f.jsonOut, "json", false, "print the JSON report instead of the text summary")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&f.listProfiles, "list-profiles", false, "list available profiles and exit")
	fs.IntVar(&f.workers, "workers", 0, "files cleaned concurrently (default from settings, then 4)")
	fs.Float64Var(&f.minKeep, "min-keep-ratio", -1, "leave a file untouched when fewer than this share of cues survive")
	if err := fs.Parse(args); err != nil {
		return nil, nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "flags")
	}
	return f, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	f, paths, err := parseFlags(args, stderr)
	if err != nil {
		return perr.Exit(err)
	}
	fail := func(err error) int {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return perr.Exit(err)
	}

	switch {
	case f.showVersion:
		_, _ = fmt.Fprintln(stdout, version.Info(service))
		return 0
	case f.initConfig != "":
		if err := writeDefaults(f.initConfig); err != nil {
			return fail(err)
		}
		return 0
	}

	env := config.LoadEnv()
	if f.settingsPath == "" {
		f.settingsPath = env.SettingsFile
	}
	st, err := settings.Load(f.settingsPath)
	if err != nil {
		return fail(err)
	}
	st.ApplyEnv(env)
	f.apply(st)
	if err := validate.Struct(st); err != nil {
		return fail(err)
	}

	reg, err := profile.NewRegistry(st.RegistryOptions())
	if err != nil {
		return fail(err)
	}
	engine := pipeline.NewEngine(reg)

	if f.listProfiles {
		for _, l := range reg.Languages() {
			_, _ = fmt.Fprintln(stdout, l)
		}
		return 0
	}
	if len(paths) == 0 {
		return fail(perr.InvalidArgf("no input: give files, directories or - for stdin"))
	}
	if len(paths) == 1 && paths[0] == "-" {
		if err := cleanStream(ctx, engine, st, f, stdin, stdout); err != nil {
			return fail(err)
		}
		return 0
	}

	files, err := batch.Discover(paths...)
	if err != nil {
		return fail(err)
	}
	r := &batch.Runner{
		Engine: engine,
		Config: st.Config(),
		Opts: batch.Options{
			OutDir:          f.out,
			Root:            commonRoot(paths),
			DryRun:          f.dryRun,
			Workers:         st.Settings.Workers,
			MinKeepRatio:    st.Settings.MinKeepRatio,
			DefaultLanguage: st.Settings.DefaultLanguage,
			Language:        f.lang,
		},
	}
	results, err := r.Run(ctx, files)
	if err != nil {
		return fail(perr.Wrap(err, perr.ErrorCodeUnavailable, "run interrupted"))
	}
	sum := batch.Summarize(results)

	if f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Summary batch.Summary  `json:"summary"`
			Files   []batch.Result `json:"files"`
		}{sum, results}); err != nil {
			return fail(perr.Wrap(err, perr.ErrorCodeIO, "write report"))
		}
	} else {
		printSummary(stdout, results, sum)
	}
	if sum.Failed() {
		return 1
	}
	return 0
}

// apply lets explicit flags win over the settings file and environment
func (f *flags) apply(st *settings.File) {
	if f.defaultLang != "" {
		st.Settings.DefaultLanguage = f.defaultLang
	}
	if f.profilesDir != "" {
		st.Settings.ProfilesDir = f.profilesDir
	}
	if f.profiles != "" {
		st.Settings.Profiles = nil
		for _, p := range strings.Split(f.profiles, ",") {
			if p = strings.TrimSpace(p); p != "" {
				st.Settings.Profiles = append(st.Settings.Profiles, p)
			}
		}
	}
	if f.workers > 0 {
		st.Settings.Workers = f.workers
	}
	if f.minKeep >= 0 {
		st.Settings.MinKeepRatio = f.minKeep
	}
}

// cleanStream cleans one document from r. A guarded result echoes the input
func cleanStream(ctx context.Context, e *pipeline.Engine, st *settings.File, f *flags, r io.Reader, w io.Writer) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return perr.IOf(err, "read stdin")
	}
	text, _, err := batch.Decode(raw)
	if err != nil {
		return err
	}
	lang := f.lang
	if lang == "" {
		lang = st.Settings.DefaultLanguage
	}
	out, rep, err := e.Process(ctx, text, lang, st.Config())
	if err != nil {
		return err
	}
	if rep.KeepRatio() < st.Settings.MinKeepRatio {
		logger.C(logger.WithRun(ctx, rep.RunID, "-")).Warn().
			Float64("keep_ratio", rep.KeepRatio()).
			Msg("too many cues removed, input echoed")
		out = text
	}
	if f.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Text   string           `json:"text"`
			Report *pipeline.Report `json:"report"`
		}{out, rep})
	}
	_, err = io.WriteString(w, out)
	return err
}

func writeDefaults(path string) error {
	b, err := settings.Default().Encode()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return perr.InvalidArgf("%s already exists", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return perr.IOf(err, "write %s", path)
	}
	return nil
}

// commonRoot is the directory -out paths are mirrored from: the directory
// argument when there is exactly one, otherwise none
func commonRoot(paths []string) string {
	if len(paths) != 1 {
		return ""
	}
	if st, err := os.Stat(paths[0]); err == nil && st.IsDir() {
		return filepath.Clean(paths[0])
	}
	return ""
}

func printSummary(w io.Writer, results []batch.Result, sum batch.Summary) {
	for _, r := range results {
		switch {
		case r.Error != "":
			_, _ = fmt.Fprintf(w, "%-9s %s: %s\n", r.Status, r.Path, r.Error)
		case r.Report != nil:
			_, _ = fmt.Fprintf(w, "%-9s %s [%s] %d -> %d cues, %d removed, %d rewritten\n",
				r.Status, r.Path, r.Language, r.Report.InputCues, r.Report.OutputCues,
				len(r.Report.Removed), len(r.Report.Transforms))
		default:
			_, _ = fmt.Fprintf(w, "%-9s %s\n", r.Status, r.Path)
		}
	}
	_, _ = fmt.Fprintf(w, "%d files, %d cues removed, %d rewritten, %d failed\n",
		sum.Files, sum.Removed, sum.Changed, sum.ByStatus[batch.StatusFailed])
}
