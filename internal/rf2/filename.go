package rf2

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ReleaseType is the history shape of a release file.
type ReleaseType string

const (
	ReleaseDelta    ReleaseType = "Delta"
	ReleaseFull     ReleaseType = "Full"
	ReleaseSnapshot ReleaseType = "Snapshot"
)

// releaseTypes lists every keyword searched for in a file name.
var releaseTypes = []ReleaseType{ReleaseDelta, ReleaseFull, ReleaseSnapshot}

// ErrNoEffectiveTime is returned when a name carries no effective-time token.
var ErrNoEffectiveTime = errors.New("no effective time in file name")

// effectiveTimePattern matches an 8-digit run not embedded in a longer run of
// digits, optionally followed by the date-time marker T.
var effectiveTimePattern = regexp.MustCompile(`(?:^|[^0-9])([0-9]{8})(?:(T)|[^0-9]|$)`)

// EffectiveTime returns the first effective-time token in name, including the
// trailing T when present.
func EffectiveTime(name string) (string, bool) {
	start, end, ok := effectiveTimeSpan(name)
	if !ok {
		return "", false
	}
	return name[start:end], true
}

// effectiveTimeSpan returns the byte offsets of the first effective-time token.
func effectiveTimeSpan(name string) (int, int, bool) {
	m := effectiveTimePattern.FindStringSubmatchIndex(name)
	if m == nil {
		return 0, 0, false
	}
	start, end := m[2], m[3]
	if m[4] >= 0 {
		end = m[5]
	}
	return start, end, true
}

// ReplaceEffectiveTime substitutes the first effective-time token in name
// with the date of target. The T marker of the original token is kept, so a
// date-time archive name stays a date-time name and a plain member name stays
// plain.
func ReplaceEffectiveTime(name, target string) (string, error) {
	date, ok := EffectiveTime(target)
	if !ok {
		return "", fmt.Errorf("target %q: %w", target, ErrNoEffectiveTime)
	}
	date = strings.TrimSuffix(date, "T")

	start, end, ok := effectiveTimeSpan(name)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNoEffectiveTime)
	}
	if strings.HasSuffix(name[start:end], "T") {
		date += "T"
	}
	return name[:start] + date + name[end:], nil
}

// FileName is the parsed form of a release file path.
type FileName struct {
	// Path is the full member path as given.
	Path string
	// Base is the final path element.
	Base string
	// Prefix is everything before the release-type keyword.
	Prefix string
	// ReleaseType is the keyword found in Base.
	ReleaseType ReleaseType
	// LanguageModifier sits between the keyword and the module token.
	LanguageModifier string
	// ShortKey is Prefix + LanguageModifier.
	ShortKey string
	// EffectiveTime is the first effective-time token; empty when absent.
	EffectiveTime string
	// ModuleTokenFound is false when LanguageModifier came from the fallback rule.
	ModuleTokenFound bool
}

// IsLanguageRefset reports whether the file is a language reference set.
func (f FileName) IsLanguageRefset() bool {
	return IsLanguageRefsetPrefix(f.Prefix)
}

// FilenameCodec derives short keys from release file names.
type FilenameCodec struct {
	// ModuleToken terminates the language modifier, e.g. "INT".
	ModuleToken string
	// SecondaryLocaleMarker is the modifier assumed for locale-bearing files
	// whose name lacks ModuleToken, e.g. "-fr_".
	SecondaryLocaleMarker string
}

// Parse classifies path. It returns false when no release-type keyword is
// present in the base name.
func (c FilenameCodec) Parse(p string) (FileName, bool) {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))

	kwAt, kw := -1, ReleaseType("")
	for _, rt := range releaseTypes {
		if i := strings.Index(base, string(rt)); i >= 0 && (kwAt < 0 || i < kwAt) {
			kwAt, kw = i, rt
		}
	}
	if kwAt < 0 {
		return FileName{}, false
	}

	f := FileName{
		Path:        p,
		Base:        base,
		Prefix:      base[:kwAt],
		ReleaseType: kw,
	}
	f.EffectiveTime, _ = EffectiveTime(base)

	rest := base[kwAt+len(kw):]
	if c.ModuleToken != "" {
		if i := strings.Index(rest, c.ModuleToken); i >= 0 {
			f.LanguageModifier = rest[:i]
			f.ModuleTokenFound = true
		}
	}
	if !f.ModuleTokenFound {
		if IsLocalePrefix(f.Prefix) {
			f.LanguageModifier = c.SecondaryLocaleMarker
		} else {
			f.LanguageModifier = "_"
		}
	}
	f.ShortKey = f.Prefix + f.LanguageModifier
	return f, true
}

// ShortKey is a convenience wrapper around Parse.
func (c FilenameCodec) ShortKey(p string) (string, bool) {
	f, ok := c.Parse(p)
	return f.ShortKey, ok
}

// IsLocalePrefix reports whether files with this prefix carry a language
// modifier: descriptions, text definitions and language reference sets.
func IsLocalePrefix(prefix string) bool {
	return strings.Contains(prefix, "Description") ||
		strings.Contains(prefix, "TextDefinition") ||
		IsLanguageRefsetPrefix(prefix)
}

// IsLanguageRefsetPrefix reports whether prefix names a language reference set.
func IsLanguageRefsetPrefix(prefix string) bool {
	return strings.Contains(prefix, "Language")
}

// IsLanguageRefsetKey reports whether a short key names a language reference set.
func IsLanguageRefsetKey(shortKey string) bool {
	return IsLanguageRefsetPrefix(shortKey)
}

// HasLocale reports whether shortKey ends with the given locale modifier.
func HasLocale(shortKey, modifier string) bool {
	return modifier != "" && strings.HasSuffix(shortKey, modifier)
}
