// Package lang normalises release language labels to BCP 47 base languages.
package lang

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// English is the language assumed for releases that carry no language marker.
const English = "en"

var known = []language.Tag{
	language.English, language.French, language.German, language.Spanish,
	language.Italian, language.Japanese, language.Korean, language.Chinese,
	language.Russian, language.Portuguese, language.Dutch, language.Swedish,
	language.Danish, language.Norwegian, language.Finnish, language.Polish,
	language.Hindi, language.Arabic, language.Turkish, language.Hebrew,
	language.Czech, language.Hungarian, language.Greek, language.Thai,
}

var byName = func() map[string]string {
	namer := display.English.Languages()
	m := make(map[string]string, len(known)+4)
	for _, tag := range known {
		base, _ := tag.Base()
		m[strings.ToLower(namer.Name(tag))] = base.String()
	}
	m["flemish"] = "nl"
	m["brazilian"] = "pt"
	m["vostfr"] = "fr"
	m["mandarin"] = "zh"
	return m
}()

// Normalize converts an English language name ("French") or a language tag
// ("fr", "fra", "pt-BR") to its base code. Unknown labels return "".
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return ""
	}
	if code, ok := byName[s]; ok {
		return code
	}
	tag, err := language.Parse(s)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// NormalizeAll normalises labels, dropping unknown and duplicate entries.
// An empty result means English.
func NormalizeAll(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		code := Normalize(l)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	if len(out) == 0 {
		out = append(out, English)
	}
	return out
}

// Contains reports whether labels include want, after normalisation.
func Contains(labels []string, want string) bool {
	target := Normalize(want)
	if target == "" {
		return false
	}
	for _, code := range NormalizeAll(labels) {
		if code == target {
			return true
		}
	}
	return false
}

// IsAny reports whether a preference accepts every language.
func IsAny(pref string) bool {
	p := strings.ToLower(strings.TrimSpace(pref))
	return p == "" || p == "any"
}

// Name returns the English display name of a language label.
func Name(label string) string {
	code := Normalize(label)
	if code == "" {
		return label
	}
	return display.English.Languages().Name(language.Make(code))
}
