package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxDice bounds the number of dice a single expression may roll.
	MaxDice = 100
	// MaxSides bounds the faces of a single die.
	MaxSides = 1_000_000
	// MaxModifier bounds the magnitude of the flat modifier. Together with
	// MaxDice and MaxSides it keeps every total well inside int range.
	MaxModifier = 1_000_000
)

var (
	// ErrSyntax reports malformed dice notation.
	ErrSyntax = errors.New("dice: syntax error")
	// ErrCountOutOfRange reports a die count outside [1, MaxDice].
	ErrCountOutOfRange = errors.New("dice: count out of range")
	// ErrInvalidSides reports a die with fewer than one or more than MaxSides sides.
	ErrInvalidSides = errors.New("dice: invalid sides")
)

// ParseError describes why an expression was rejected. Kind is one of
// ErrSyntax, ErrCountOutOfRange or ErrInvalidSides and is matched by errors.Is.
type ParseError struct {
	Input string
	Kind  error
	Msg   string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("dice: %s in %q", e.Msg, e.Input)
}

// Unwrap returns Kind so callers can use errors.Is against the sentinels.
func (e *ParseError) Unwrap() error { return e.Kind }

func parseErr(input string, kind error, format string, args ...any) error {
	return &ParseError{Input: input, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Expression represents a parsed dice expression ready to be rolled.
//
// Invariant: 1 <= Count <= MaxDice, 1 <= Sides <= MaxSides and
// |Modifier| <= MaxModifier after a successful Parse.
type Expression struct {
	Raw      string // original input string, trimmed
	Count    int    // number of dice
	Sides    int    // faces per die
	Modifier int    // flat modifier (may be negative)
}

// String returns the canonical notation for e, e.g. "2d6+3".
func (e Expression) String() string {
	return Format(e.Count, e.Sides, e.Modifier)
}

// Format renders count, sides and modifier as canonical dice notation.
// A zero modifier is omitted; the count is always written.
//
// Postcondition: Parse(Format(c, s, m)) yields Count c, Sides s, Modifier m
// for any c in [1, MaxDice], s in [1, MaxSides], |m| <= MaxModifier.
func Format(count, sides, modifier int) string {
	if modifier == 0 {
		return fmt.Sprintf("%dd%d", count, sides)
	}
	return fmt.Sprintf("%dd%d%+d", count, sides, modifier)
}

// Parse parses a dice expression string into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4D8-2". Matching is case-insensitive
// and surrounding whitespace is ignored.
//
// Postcondition: Returns a valid Expression or a *ParseError. Out-of-range
// counts, sides and modifiers are rejected, never clamped.
func Parse(text string) (Expression, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Expression{}, parseErr(text, ErrSyntax, "empty expression")
	}
	s := strings.ToLower(raw)

	dIdx := strings.IndexByte(s, 'd')
	if dIdx < 0 {
		return Expression{}, parseErr(raw, ErrSyntax, "missing 'd'")
	}

	// Count is optional and defaults to 1.
	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		if !allDigits(countStr) {
			return Expression{}, parseErr(raw, ErrSyntax, "non-numeric die count %q", countStr)
		}
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, parseErr(raw, ErrCountOutOfRange, "die count %s exceeds %d", countStr, MaxDice)
		}
		count = n
	}
	if count < 1 || count > MaxDice {
		return Expression{}, parseErr(raw, ErrCountOutOfRange, "die count %d must be in [1, %d]", count, MaxDice)
	}

	rest := s[dIdx+1:]
	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}

	if sidesStr == "" || !allDigits(sidesStr) {
		return Expression{}, parseErr(raw, ErrSyntax, "invalid die sides %q", sidesStr)
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil || sides > MaxSides {
		return Expression{}, parseErr(raw, ErrInvalidSides, "die sides %s exceeds %d", sidesStr, MaxSides)
	}
	if sides < 1 {
		return Expression{}, parseErr(raw, ErrInvalidSides, "die sides must be >= 1, got %d", sides)
	}

	modifier := 0
	if modStr != "" {
		digits := modStr[1:]
		if digits == "" || !allDigits(digits) {
			return Expression{}, parseErr(raw, ErrSyntax, "invalid modifier %q", modStr)
		}
		modifier, err = strconv.Atoi(modStr)
		if err != nil || modifier > MaxModifier || modifier < -MaxModifier {
			return Expression{}, parseErr(raw, ErrSyntax, "modifier %s exceeds ±%d", modStr, MaxModifier)
		}
	}

	return Expression{
		Raw:      raw,
		Count:    count,
		Sides:    sides,
		Modifier: modifier,
	}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
