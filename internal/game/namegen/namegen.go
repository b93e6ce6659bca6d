// Package namegen expands name patterns such as "The {adjective} {animal}" by
// drawing each placeholder from a token catalog.
package namegen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
)

// MaxDepth bounds how deeply candidates containing placeholders are expanded.
const MaxDepth = 8

var (
	// ErrUnknownToken reports a placeholder with no catalog entry.
	ErrUnknownToken = errors.New("namegen: unknown token")
	// ErrEmptyCandidates reports a catalog entry with no candidates.
	ErrEmptyCandidates = errors.New("namegen: token has no candidates")
	// ErrMalformedPattern reports an unclosed or invalid placeholder.
	ErrMalformedPattern = errors.New("namegen: malformed pattern")
	// ErrRecursionLimit reports candidates nested deeper than MaxDepth.
	ErrRecursionLimit = errors.New("namegen: recursion limit exceeded")
)

// ExpansionError identifies the placeholder that failed to expand.
// Kind is one of the package sentinels and is matched by errors.Is.
type ExpansionError struct {
	Token   string
	Pattern string
	Kind    error
}

// Error implements error.
func (e *ExpansionError) Error() string {
	return fmt.Sprintf("%s %q in pattern %q", e.Kind, e.Token, e.Pattern)
}

// Unwrap returns Kind.
func (e *ExpansionError) Unwrap() error { return e.Kind }

// Catalog maps a token name to its ordered candidate strings.
type Catalog map[string][]string

// Validate checks that every token name is a valid identifier and every
// candidate list is non-empty.
func (c Catalog) Validate() error {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		if !isIdentifier(name) {
			errs = append(errs, fmt.Sprintf("token %q is not a valid identifier", name))
		}
		if len(c[name]) == 0 {
			errs = append(errs, fmt.Sprintf("token %q has no candidates", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("namegen: invalid catalog: %s", strings.Join(errs, "; "))
	}
	return nil
}

type modifier int

const (
	modNone modifier = iota
	modUpper
	modLower
	modTitle
)

var modifiers = map[string]modifier{
	"upper": modUpper,
	"lower": modLower,
	"title": modTitle,
}

// segment is either a literal run or a placeholder.
type segment struct {
	literal string
	token   string
	mod     modifier
}

func (s segment) isToken() bool { return s.token != "" }

// parse splits pattern into literal and placeholder segments.
func parse(pattern string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] != '{' {
			lit.WriteByte(pattern[i])
			i++
			continue
		}
		end := strings.IndexByte(pattern[i+1:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed '{' at offset %d in %q", ErrMalformedPattern, i, pattern)
		}
		body := pattern[i+1 : i+1+end]
		name, modName, hasMod := strings.Cut(body, ":")
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%w: invalid placeholder {%s} in %q", ErrMalformedPattern, body, pattern)
		}
		mod := modNone
		if hasMod {
			m, ok := modifiers[modName]
			if !ok {
				return nil, fmt.Errorf("%w: unknown modifier %q in %q", ErrMalformedPattern, modName, pattern)
			}
			mod = m
		}
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
		segs = append(segs, segment{token: name, mod: mod})
		i += end + 2
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}
	return segs, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// Tokens returns the placeholder names referenced by pattern, in order of
// appearance (repeats included).
func Tokens(pattern string) ([]string, error) {
	segs, err := parse(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range segs {
		if s.isToken() {
			out = append(out, s.token)
		}
	}
	return out, nil
}

// Expand substitutes every placeholder in pattern with a candidate drawn
// uniformly from catalog, one Intn draw per occurrence, left to right.
// Candidates that contain placeholders are expanded in turn.
//
// Postcondition: on success the result contains no {...} span; an unknown
// token yields an *ExpansionError matching ErrUnknownToken and never a
// partially substituted string.
func Expand(pattern string, catalog Catalog, src dice.Source) (string, error) {
	return expand(pattern, catalog, src, 0)
}

func expand(pattern string, catalog Catalog, src dice.Source, depth int) (string, error) {
	segs, err := parse(pattern)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, s := range segs {
		if !s.isToken() {
			b.WriteString(s.literal)
			continue
		}
		if depth >= MaxDepth {
			return "", &ExpansionError{Token: s.token, Pattern: pattern, Kind: ErrRecursionLimit}
		}
		candidates, ok := catalog[s.token]
		if !ok {
			return "", &ExpansionError{Token: s.token, Pattern: pattern, Kind: ErrUnknownToken}
		}
		if len(candidates) == 0 {
			return "", &ExpansionError{Token: s.token, Pattern: pattern, Kind: ErrEmptyCandidates}
		}
		value, err := expand(candidates[src.Intn(len(candidates))], catalog, src, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(applyModifier(value, s.mod))
	}
	return b.String(), nil
}

func applyModifier(s string, mod modifier) string {
	switch mod {
	case modUpper:
		return cases.Upper(language.Und).String(s)
	case modLower:
		return cases.Lower(language.Und).String(s)
	case modTitle:
		return cases.Title(language.Und).String(s)
	default:
		return s
	}
}
