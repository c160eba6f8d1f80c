// Package textmatch matches release titles against user supplied terms.
//
// A term is either a literal, matched as a case-insensitive substring, or a
// regular expression written between slashes ("/x26[45]/"), always matched
// case-insensitively.
package textmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPattern = errors.New("invalid pattern")

// Term is a compiled match term.
type Term struct {
	raw     string
	literal string
	re      *regexp.Regexp
}

// Compile parses a single term.
func Compile(raw string) (Term, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Term{}, fmt.Errorf("%w: empty term", ErrInvalidPattern)
	}
	if len(trimmed) > 2 && strings.HasPrefix(trimmed, "/") && strings.HasSuffix(trimmed, "/") {
		re, err := regexp.Compile("(?i)" + trimmed[1:len(trimmed)-1])
		if err != nil {
			return Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, raw, err)
		}
		return Term{raw: raw, re: re}, nil
	}
	return Term{raw: raw, literal: strings.ToLower(trimmed)}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and fixed tables.
func MustCompile(raw string) Term {
	t, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the term as written.
func (t Term) String() string {
	return t.raw
}

// IsRegex reports whether the term is a regular expression.
func (t Term) IsRegex() bool {
	return t.re != nil
}

// Match reports whether value contains the term.
func (t Term) Match(value string) bool {
	if t.re != nil {
		return t.re.MatchString(value)
	}
	if t.literal == "" {
		return false
	}
	return strings.Contains(strings.ToLower(value), t.literal)
}

// Set is an OR group of terms.
type Set []Term

// CompileSet compiles every term, failing on the first invalid one.
func CompileSet(raw []string) (Set, error) {
	set := make(Set, 0, len(raw))
	for _, r := range raw {
		t, err := Compile(r)
		if err != nil {
			return nil, err
		}
		set = append(set, t)
	}
	return set, nil
}

// Match returns the terms in the set that match value.
func (s Set) Match(value string) []Term {
	var matched []Term
	for _, t := range s {
		if t.Match(value) {
			matched = append(matched, t)
		}
	}
	return matched
}

// Any reports whether at least one term matches value.
func (s Set) Any(value string) bool {
	for _, t := range s {
		if t.Match(value) {
			return true
		}
	}
	return false
}

// Strings returns the raw form of every term.
func Strings(terms []Term) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.raw
	}
	return out
}
