package dice

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxMultiplier bounds the scale suffix of an inline dice span.
const MaxMultiplier = 1_000_000

// inlinePattern matches dice notation embedded in free text, with an optional
// multiplier suffix: "2d6", "d20+1", "2d6x10", "3d6 × 100".
var inlinePattern = regexp.MustCompile(`\b(\d*[dD]\d+(?:[+-]\d+)?)(?:\s*[xX×*]\s*(\d+))?\b`)

// RollInline replaces every dice-notation span in text with its rolled total.
// A multiplier suffix scales the total: "2d6x10 gp" may become "70 gp".
// Spans are rolled left to right so a deterministic Source yields a
// deterministic string.
//
// Postcondition: text without dice notation is returned unchanged and no
// draws are taken; an out-of-range span returns its *ParseError.
func RollInline(text string, src Source) (string, error) {
	matches := inlinePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		expr, err := Parse(text[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		mult := 1
		if m[4] >= 0 {
			mult, err = strconv.Atoi(text[m[4]:m[5]])
			if err != nil || mult > MaxMultiplier {
				return "", parseErr(text[m[0]:m[1]], ErrSyntax, "multiplier exceeds %d", MaxMultiplier)
			}
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(strconv.Itoa(Roll(expr, src).Total() * mult))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
