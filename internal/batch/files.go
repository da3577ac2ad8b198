package batch

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	perr "subsift/internal/platform/errors"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// Ext is the subtitle file extension picked up by Discover
const Ext = ".srt"

// CharsetUTF8 is reported for input that needed no decoding
const CharsetUTF8 = "UTF-8"

// variant tags that may sit between the language and the extension
var variants = []string{"sdh", "forced", "hi", "cc", "default"}

// Discover expands paths into .srt files. Directories are walked recursively,
// files are taken as given. The result is sorted and free of duplicates
func Discover(paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, perr.WithField(perr.IOf(err, "stat %s", p), "path")
		}
		if !st.IsDir() {
			out = append(out, filepath.Clean(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), Ext) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, perr.IOf(err, "walk %s", p)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// LanguageFromName reads the tag in name.<lang>[.<variant>].srt, or "" when the
// file name carries none
func LanguageFromName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, ".")
	for len(parts) > 1 && slices.Contains(variants, strings.ToLower(parts[len(parts)-1])) {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return ""
	}
	cand := strings.ReplaceAll(parts[len(parts)-1], "_", "-")
	primary, _, _ := strings.Cut(cand, "-")
	switch {
	case len(primary) == 2:
	case len(primary) == 3 && primary == strings.ToLower(primary):
		// lower case only, so title words like "The.Man.srt" stay untagged
	default:
		return ""
	}
	tag, err := language.Parse(cand)
	if err != nil {
		return ""
	}
	return tag.String()
}

// Decode returns b as UTF-8 text and the charset it was read as. UTF-8 input
// (with or without BOM) is returned as is; anything else goes through chardet
func Decode(b []byte) (string, string, error) {
	if utf8.Valid(b) {
		return string(b), CharsetUTF8, nil
	}
	if bytes.HasPrefix(b, []byte{0xFF, 0xFE}) || bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		return decodeWith(b, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "UTF-16")
	}

	best, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil {
		return "", "", perr.Wrap(err, perr.ErrorCodeParse, "detect charset")
	}
	enc, err := htmlindex.Get(charsetAlias(best.Charset))
	if err != nil {
		return "", "", perr.WithField(perr.Newf(perr.ErrorCodeParse, "unsupported charset %q", best.Charset), "charset")
	}
	return decodeWith(b, enc, best.Charset)
}

func decodeWith(b []byte, enc encoding.Encoding, name string) (string, string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return "", "", perr.Wrapf(err, perr.ErrorCodeParse, "decode %s", name)
	}
	return string(out), name, nil
}

// chardet names that htmlindex spells differently
func charsetAlias(name string) string {
	switch strings.ToUpper(name) {
	case "GB-18030":
		return "gb18030"
	case "ISO-8859-8-I":
		return "iso-8859-8-i"
	case "IBM420_LTR", "IBM420_RTL", "IBM424_LTR", "IBM424_RTL":
		return "windows-1252"
	}
	return strings.ToLower(name)
}

// writeAtomic writes data next to dest and renames it into place
func writeAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perr.IOf(err, "mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".subsift-*")
	if err != nil {
		return perr.IOf(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return perr.IOf(err, "write %s", tmpName)
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return perr.IOf(err, "close %s", tmpName)
	}
	_ = os.Chmod(tmpName, perm)
	if err := os.Rename(tmpName, dest); err != nil {
		return perr.IOf(err, "rename into %s", dest)
	}
	return nil
}
