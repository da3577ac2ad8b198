// Package settings loads the YAML settings file shared by the CLI and the API.
// Built-in defaults are filled first and the file is decoded over them, so a
// file only lists what it changes. SUBSIFT_* environment values win over both
package settings

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"subsift/internal/core/classifier"
	"subsift/internal/core/normalize"
	"subsift/internal/core/pipeline"
	"subsift/internal/core/profile"
	"subsift/internal/platform/config"
	perr "subsift/internal/platform/errors"
	"subsift/internal/platform/validate"

	"gopkg.in/yaml.v3"
)

// CurrentVersion of the settings file layout
const CurrentVersion = 1

// File mirrors subsift.yaml
type File struct {
	Version      int                `yaml:"version" validate:"eq=1"`
	Settings     General            `yaml:"settings"`
	TextCleaning TextCleaning       `yaml:"text_cleaning"`
	Detection    classifier.Options `yaml:"detection"`
}

// General holds profile selection and batch knobs
type General struct {
	DefaultLanguage        string   `yaml:"default_language" validate:"omitempty,langtag"`
	UseDefaults            bool     `yaml:"use_defaults"`
	UseEnglishOnAll        bool     `yaml:"use_english_on_all"`
	RequireLanguageProfile bool     `yaml:"require_language_profile"`
	ProfilesDir            string   `yaml:"profiles_dir"`
	Profiles               []string `yaml:"profiles"`
	Workers                int      `yaml:"workers" validate:"gte=0,lte=256"`
	// MinKeepRatio refuses to write a cleaned file that kept fewer cues than this share
	MinKeepRatio float64 `yaml:"min_keep_ratio" validate:"gte=0,lte=1"`
}

// TextCleaning is the per-feature switch board of the normalizer
type TextCleaning struct {
	RemoveSDH           bool `yaml:"remove_sdh"`
	RemoveSpeakerLabels bool `yaml:"remove_speaker_labels"`
	RemoveMusicNotes    bool `yaml:"remove_music_notes"`
	RemoveLineBreaks    bool `yaml:"remove_line_breaks"`
	MergeIdenticalCues  bool `yaml:"merge_identical_cues"`
	NormalizeCase       bool `yaml:"convert_uppercase_to_lowercase"`
	RemoveDialogMarkers bool `yaml:"remove_dialog_markers"`

	RemoveFormattingTags bool `yaml:"remove_formatting_tags"`
	PreserveItalicTags   bool `yaml:"preserve_italic_tags"`
	PreserveBoldTags     bool `yaml:"preserve_bold_tags"`
	PreserveFontTags     bool `yaml:"preserve_font_tags"`
	// PreserveTags replaces the three flags above when set
	PreserveTags []string `yaml:"preserve_tags,omitempty" validate:"omitempty,dive,alphanum"`

	RemoveTextInCurlyBraces    bool `yaml:"remove_text_in_curly_braces"`
	RemoveTextInParentheses    bool `yaml:"remove_text_in_parentheses"`
	RemoveTextInSquareBrackets bool `yaml:"remove_text_in_square_brackets"`
	RemoveTextInAsterisks      bool `yaml:"remove_text_in_asterisks"`
	RemoveTextInHashtags       bool `yaml:"remove_text_in_hashtags"`

	CustomCharsToRemove []string `yaml:"custom_chars_to_remove" validate:"dive,required"`

	CaseMinLetters int     `yaml:"case_min_letters" validate:"gte=0"`
	CaseUpperRatio float64 `yaml:"case_upper_ratio" validate:"gte=0,lte=1"`
}

// Default returns the settings used when no file is given
func Default() *File {
	return &File{
		Version: CurrentVersion,
		Settings: General{
			UseDefaults:            true,
			RequireLanguageProfile: true,
		},
		TextCleaning: TextCleaning{
			PreserveItalicTags: true,
			PreserveBoldTags:   true,
			PreserveFontTags:   true,
			CaseMinLetters:     normalize.DefaultCaseMinLetters,
			CaseUpperRatio:     normalize.DefaultCaseUpperRatio,
		},
		Detection: classifier.DefaultOptions(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults
func Load(path string) (*File, error) {
	f := Default()
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.WithField(perr.IOf(err, "read settings %s", path), "settings")
	}
	if err := f.Decode(data); err != nil {
		return nil, perr.WithField(err, "settings")
	}
	return f, nil
}

// Decode overlays YAML data onto f and validates the result
func (f *File) Decode(data []byte) error {
	if err := yaml.Unmarshal(data, f); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "decode settings")
	}
	f.normalize()
	return validate.Struct(f)
}

// Encode renders f as YAML
func (f *File) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "encode settings")
	}
	if err := enc.Close(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "encode settings")
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy, so a request can overlay options on shared defaults
func (f *File) Clone() *File {
	c := *f
	c.Settings.Profiles = slices.Clone(f.Settings.Profiles)
	c.TextCleaning.PreserveTags = slices.Clone(f.TextCleaning.PreserveTags)
	c.TextCleaning.CustomCharsToRemove = slices.Clone(f.TextCleaning.CustomCharsToRemove)
	return &c
}

func (f *File) normalize() {
	if f.Version == 0 {
		f.Version = CurrentVersion
	}
	s := &f.Settings
	s.DefaultLanguage = strings.TrimSpace(s.DefaultLanguage)
	switch strings.ToLower(s.DefaultLanguage) {
	case "blank", "empty", "none":
		s.DefaultLanguage = ""
	}
	s.ProfilesDir = filepath.Clean(strings.TrimSpace(s.ProfilesDir))
	if s.ProfilesDir == "." {
		s.ProfilesDir = ""
	}
	for i := range f.TextCleaning.PreserveTags {
		f.TextCleaning.PreserveTags[i] = strings.ToLower(strings.TrimSpace(f.TextCleaning.PreserveTags[i]))
	}
}

// ApplyEnv lets SUBSIFT_* values override the file
func (f *File) ApplyEnv(env config.Env) {
	if env.Language != "" {
		f.Settings.DefaultLanguage = env.Language
	}
	if env.ProfilesDir != "" {
		f.Settings.ProfilesDir = env.ProfilesDir
	}
	if env.Workers > 0 {
		f.Settings.Workers = env.Workers
	}
	if env.MinKeepRatio >= 0 {
		f.Settings.MinKeepRatio = env.MinKeepRatio
	}
}

// PreserveList is the explicit list, or the one built from the preserve flags
func (t TextCleaning) PreserveList() []string {
	if t.PreserveTags != nil {
		return t.PreserveTags
	}
	out := []string{}
	if t.PreserveItalicTags {
		out = append(out, "i", "em")
	}
	if t.PreserveBoldTags {
		out = append(out, "b", "strong")
	}
	if t.PreserveFontTags {
		out = append(out, "font", "span", "color")
	}
	return out
}

// Delimiters lists the enabled delimiter classes
func (t TextCleaning) Delimiters() []profile.DelimClass {
	var out []profile.DelimClass
	for _, d := range []struct {
		on  bool
		cls profile.DelimClass
	}{
		{t.RemoveTextInCurlyBraces, profile.DelimCurly},
		{t.RemoveTextInParentheses, profile.DelimParen},
		{t.RemoveTextInSquareBrackets, profile.DelimSquare},
		{t.RemoveTextInAsterisks, profile.DelimAsterisk},
		{t.RemoveTextInHashtags, profile.DelimHashtag},
	} {
		if d.on {
			out = append(out, d.cls)
		}
	}
	return out
}

// Config returns the pipeline configuration these settings describe
func (f *File) Config() pipeline.Config {
	t := f.TextCleaning
	return pipeline.Config{
		Text: normalize.Options{
			JoinLines:           t.RemoveLineBreaks,
			RemoveSDH:           t.RemoveSDH,
			RemoveSpeakerLabels: t.RemoveSpeakerLabels,
			RemoveDialogMarkers: t.RemoveDialogMarkers,
			RemoveTags:          t.RemoveFormattingTags,
			PreserveTags:        t.PreserveList(),
			Delimiters:          t.Delimiters(),
			Custom:              t.CustomCharsToRemove,
			RemoveMusic:         t.RemoveMusicNotes,
			NormalizeCase:       t.NormalizeCase,
			CaseMinLetters:      t.CaseMinLetters,
			CaseUpperRatio:      t.CaseUpperRatio,
		},
		Detection:              f.Detection,
		MergeIdenticalCues:     t.MergeIdenticalCues,
		Profiles:               f.Settings.Profiles,
		UseDefaults:            f.Settings.UseDefaults,
		UseEnglishOnAll:        f.Settings.UseEnglishOnAll,
		RequireLanguageProfile: f.Settings.RequireLanguageProfile,
	}
}

// RegistryOptions returns the profile registry options
func (f *File) RegistryOptions() profile.Options {
	return profile.Options{OverrideDir: f.Settings.ProfilesDir}
}
