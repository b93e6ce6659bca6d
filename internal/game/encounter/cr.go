package encounter

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CR is an exact challenge rating such as 0, 1/8, 1/4, 1/2 or 1..30.
//
// Invariant: den > 0 and num/den is in lowest terms. The zero value is not a
// valid CR; build one with NewCR or ParseCR.
type CR struct {
	num int64
	den int64
}

// NewCR returns the challenge rating num/den in lowest terms.
//
// Precondition: num >= 0, den > 0.
func NewCR(num, den int64) CR {
	if num < 0 || den <= 0 {
		panic(fmt.Sprintf("encounter: NewCR(%d, %d) requires num >= 0 and den > 0", num, den))
	}
	g := gcd(num, den)
	return CR{num: num / g, den: den / g}
}

// Whole returns the integral challenge rating n.
func Whole(n int64) CR { return NewCR(n, 1) }

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// ParseCR parses "1/4", "0.25", "5" or "0" into a CR.
func ParseCR(s string) (CR, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok || s == "" {
		return CR{}, fmt.Errorf("encounter: invalid challenge rating %q", s)
	}
	if r.Sign() < 0 {
		return CR{}, fmt.Errorf("encounter: challenge rating %q must not be negative", s)
	}
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return CR{}, fmt.Errorf("encounter: challenge rating %q out of range", s)
	}
	return NewCR(r.Num().Int64(), r.Denom().Int64()), nil
}

// MustParseCR is ParseCR that panics on error.
func MustParseCR(s string) CR {
	cr, err := ParseCR(s)
	if err != nil {
		panic(err.Error())
	}
	return cr
}

// Valid reports whether cr was built by NewCR or ParseCR.
func (cr CR) Valid() bool { return cr.den > 0 }

// Float64 returns cr as a float.
func (cr CR) Float64() float64 {
	if cr.den == 0 {
		return 0
	}
	return float64(cr.num) / float64(cr.den)
}

// Less orders challenge ratings numerically.
func (cr CR) Less(o CR) bool {
	return new(big.Rat).SetFrac64(cr.num, max(cr.den, 1)).Cmp(new(big.Rat).SetFrac64(o.num, max(o.den, 1))) < 0
}

// String renders integral ratings as "5" and fractions as "1/4".
func (cr CR) String() string {
	if cr.den == 0 {
		return "invalid"
	}
	if cr.den == 1 {
		return strconv.FormatInt(cr.num, 10)
	}
	return fmt.Sprintf("%d/%d", cr.num, cr.den)
}

// MarshalText implements encoding.TextMarshaler.
func (cr CR) MarshalText() ([]byte, error) {
	if !cr.Valid() {
		return nil, fmt.Errorf("encounter: cannot marshal invalid challenge rating")
	}
	return []byte(cr.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (cr *CR) UnmarshalText(b []byte) error {
	v, err := ParseCR(string(b))
	if err != nil {
		return err
	}
	*cr = v
	return nil
}

// UnmarshalJSON accepts both JSON strings ("1/4") and numbers (0.25).
func (cr *CR) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	return cr.UnmarshalText([]byte(s))
}

// UnmarshalYAML accepts scalar nodes such as 1/4, 0.25 or 5.
func (cr *CR) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("encounter: line %d: challenge rating must be a scalar", node.Line)
	}
	return cr.UnmarshalText([]byte(node.Value))
}

// CRTable maps a challenge rating to the XP a single creature of that rating
// is worth.
type CRTable map[CR]int

// Validate checks that every entry has a valid CR and a non-negative XP value.
func (t CRTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("encounter: CR table is empty")
	}
	for cr, xp := range t {
		if !cr.Valid() {
			return fmt.Errorf("encounter: CR table contains an invalid challenge rating")
		}
		if xp < 0 {
			return fmt.Errorf("encounter: CR %s has negative XP %d", cr, xp)
		}
	}
	return nil
}
