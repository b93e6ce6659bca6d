// Package encounter computes encounter XP and rates encounter difficulty
// against a party's XP thresholds.
//
// Reference data (CR→XP and per-level thresholds) is supplied by the caller.
// Missing entries are errors, never silently defaulted: a level-15 party must
// not be judged against level-1 thresholds.
package encounter

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownCR reports a challenge rating absent from the CR table.
	ErrUnknownCR = errors.New("encounter: unknown challenge rating")
	// ErrUnknownLevel reports a character level absent from the threshold table.
	ErrUnknownLevel = errors.New("encounter: unknown character level")
	// ErrInvalidCount reports a monster group or party member count below 1.
	ErrInvalidCount = errors.New("encounter: invalid count")
	// ErrEmptyParty reports a party with no members.
	ErrEmptyParty = errors.New("encounter: empty party")
	// ErrInvalidXP reports a negative XP total.
	ErrInvalidXP = errors.New("encounter: invalid XP total")
	// ErrOverflow reports counts or XP totals too large to represent.
	ErrOverflow = errors.New("encounter: arithmetic overflow")
)

// BalancerError carries the offending value alongside the sentinel Kind.
type BalancerError struct {
	Kind   error
	Detail string
}

// Error implements error.
func (e *BalancerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns Kind.
func (e *BalancerError) Unwrap() error { return e.Kind }

func balancerErr(kind error, format string, args ...any) error {
	return &BalancerError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Tier is an encounter difficulty. Tiers are totally ordered: Easy < Medium <
// Hard < Deadly.
type Tier int

const (
	Easy Tier = iota
	Medium
	Hard
	Deadly
)

var tierNames = [...]string{"easy", "medium", "hard", "deadly"}

// Tiers lists every tier in ascending order.
func Tiers() []Tier { return []Tier{Easy, Medium, Hard, Deadly} }

// String returns the lower-case tier name.
func (t Tier) String() string {
	if t < Easy || t > Deadly {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("encounter: unknown tier %q", s)
}

// Thresholds holds the XP boundary of each tier.
type Thresholds struct {
	Easy   int `yaml:"easy" json:"easy"`
	Medium int `yaml:"medium" json:"medium"`
	Hard   int `yaml:"hard" json:"hard"`
	Deadly int `yaml:"deadly" json:"deadly"`
}

// For returns the threshold of tier t.
func (th Thresholds) For(t Tier) int {
	switch t {
	case Easy:
		return th.Easy
	case Medium:
		return th.Medium
	case Hard:
		return th.Hard
	default:
		return th.Deadly
	}
}

// ThresholdTable maps a character level to its per-character thresholds.
type ThresholdTable map[int]Thresholds

// Validate checks every row is positive and non-decreasing by tier.
func (t ThresholdTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("encounter: threshold table is empty")
	}
	for level, th := range t {
		if level < 1 {
			return fmt.Errorf("encounter: threshold level %d must be >= 1", level)
		}
		if th.Easy <= 0 || th.Easy > th.Medium || th.Medium > th.Hard || th.Hard > th.Deadly {
			return fmt.Errorf("encounter: level %d thresholds %+v must be positive and ascending", level, th)
		}
	}
	return nil
}

// Group is a number of monsters sharing a challenge rating.
type Group struct {
	CR    CR  `yaml:"cr" json:"cr"`
	Count int `yaml:"count" json:"count"`
}

// Member is a number of characters sharing a level.
type Member struct {
	Level int `yaml:"level" json:"level"`
	Count int `yaml:"count" json:"count"`
}

// Party is the ordered party composition.
type Party []Member

// Size returns the number of characters in the party, saturating at
// math.MaxInt.
func (p Party) Size() int {
	n := 0
	for _, m := range p {
		var ok bool
		if n, ok = mulAdd(n, 1, m.Count); !ok {
			return math.MaxInt
		}
	}
	return n
}

// mulAdd returns acc + x*n, reporting false when the result would not fit in
// an int.
//
// Precondition: acc, x and n are non-negative.
func mulAdd(acc, x, n int) (int, bool) {
	if x != 0 && n > (math.MaxInt-acc)/x {
		return 0, false
	}
	return acc + x*n, true
}

// monsterCount returns the number of monsters across groups.
func monsterCount(monsters []Group) (int, error) {
	n := 0
	for i, g := range monsters {
		if g.Count < 1 {
			return 0, balancerErr(ErrInvalidCount, "monster group %d has count %d", i, g.Count)
		}
		var ok bool
		if n, ok = mulAdd(n, 1, g.Count); !ok {
			return 0, balancerErr(ErrOverflow, "monster count exceeds %d at group %d", math.MaxInt, i)
		}
	}
	return n, nil
}

// TotalXP sums crTable[group.CR] × group.Count over monsters.
//
// Postcondition: returns the XP total, or a *BalancerError matching
// ErrUnknownCR, ErrInvalidCount or ErrOverflow. An empty monster list
// totals 0.
func TotalXP(monsters []Group, crTable CRTable) (int, error) {
	total := 0
	for i, g := range monsters {
		if g.Count < 1 {
			return 0, balancerErr(ErrInvalidCount, "monster group %d has count %d", i, g.Count)
		}
		xp, ok := crTable[g.CR]
		if !ok {
			return 0, balancerErr(ErrUnknownCR, "monster group %d has CR %s", i, g.CR)
		}
		if xp < 0 {
			return 0, balancerErr(ErrInvalidXP, "CR %s is worth %d XP", g.CR, xp)
		}
		if total, ok = mulAdd(total, xp, g.Count); !ok {
			return 0, balancerErr(ErrOverflow, "XP total exceeds %d at monster group %d", math.MaxInt, i)
		}
	}
	return total, nil
}

// multiplierHalves returns twice the encounter multiplier for n monsters so
// the arithmetic stays integral.
func multiplierHalves(n int) int {
	switch {
	case n <= 1:
		return 2
	case n == 2:
		return 3
	case n <= 6:
		return 4
	case n <= 10:
		return 5
	case n <= 14:
		return 6
	default:
		return 8
	}
}

// Multiplier returns the encounter multiplier applied for n monsters:
// 1 → ×1, 2 → ×1.5, 3–6 → ×2, 7–10 → ×2.5, 11–14 → ×3, 15+ → ×4.
func Multiplier(n int) float64 { return float64(multiplierHalves(n)) / 2 }

// AdjustedXP is TotalXP scaled by the multiplier for the number of monsters,
// truncated toward zero.
func AdjustedXP(monsters []Group, crTable CRTable) (int, error) {
	total, err := TotalXP(monsters, crTable)
	if err != nil {
		return 0, err
	}
	n, err := monsterCount(monsters)
	if err != nil {
		return 0, err
	}
	halves := multiplierHalves(n)
	if total > math.MaxInt/halves {
		return 0, balancerErr(ErrOverflow, "adjusted XP of %d x%.1f exceeds %d", total, Multiplier(n), math.MaxInt)
	}
	return total * halves / 2, nil
}

// PartyThresholds sums table[member.Level] × member.Count per tier.
//
// Postcondition: returns the aggregate thresholds, or a *BalancerError
// matching ErrEmptyParty, ErrInvalidCount, ErrUnknownLevel or ErrOverflow.
func PartyThresholds(party Party, table ThresholdTable) (Thresholds, error) {
	if len(party) == 0 {
		return Thresholds{}, balancerErr(ErrEmptyParty, "party has no members")
	}
	var sum Thresholds
	for i, m := range party {
		if m.Count < 1 {
			return Thresholds{}, balancerErr(ErrInvalidCount, "party member %d has count %d", i, m.Count)
		}
		th, ok := table[m.Level]
		if !ok {
			return Thresholds{}, balancerErr(ErrUnknownLevel, "party member %d has level %d", i, m.Level)
		}
		if sum, ok = addThresholds(sum, th, m.Count); !ok {
			return Thresholds{}, balancerErr(ErrOverflow, "party thresholds exceed %d at member %d", math.MaxInt, i)
		}
	}
	return sum, nil
}

// addThresholds returns sum + th*n per tier.
func addThresholds(sum, th Thresholds, n int) (Thresholds, bool) {
	var ok [4]bool
	sum.Easy, ok[0] = mulAdd(sum.Easy, th.Easy, n)
	sum.Medium, ok[1] = mulAdd(sum.Medium, th.Medium, n)
	sum.Hard, ok[2] = mulAdd(sum.Hard, th.Hard, n)
	sum.Deadly, ok[3] = mulAdd(sum.Deadly, th.Deadly, n)
	return sum, ok[0] && ok[1] && ok[2] && ok[3]
}

// Budget returns the party's XP threshold for tier, the most XP an encounter
// may be worth and still rate at or below tier.
func Budget(party Party, table ThresholdTable, tier Tier) (int, error) {
	th, err := PartyThresholds(party, table)
	if err != nil {
		return 0, err
	}
	return th.For(tier), nil
}

// Classify returns the lowest tier whose party threshold is >= totalXP, or
// Deadly when totalXP exceeds every threshold.
//
// Postcondition: monotonic in totalXP for a fixed party and table.
func Classify(totalXP int, party Party, table ThresholdTable) (Tier, error) {
	if totalXP < 0 {
		return 0, balancerErr(ErrInvalidXP, "total XP %d is negative", totalXP)
	}
	th, err := PartyThresholds(party, table)
	if err != nil {
		return 0, err
	}
	for _, t := range Tiers() {
		if totalXP <= th.For(t) {
			return t, nil
		}
	}
	return Deadly, nil
}

// Report summarises an encounter for display.
type Report struct {
	TotalXP    int        `json:"total_xp"`
	AdjustedXP int        `json:"adjusted_xp"`
	Monsters   int        `json:"monsters"`
	Thresholds Thresholds `json:"thresholds"`
	Tier       Tier       `json:"tier"`
}

// Evaluate totals the monsters, applies the group multiplier and classifies
// the adjusted XP against the party.
func Evaluate(monsters []Group, party Party, crTable CRTable, table ThresholdTable) (Report, error) {
	total, err := TotalXP(monsters, crTable)
	if err != nil {
		return Report{}, err
	}
	adjusted, err := AdjustedXP(monsters, crTable)
	if err != nil {
		return Report{}, err
	}
	th, err := PartyThresholds(party, table)
	if err != nil {
		return Report{}, err
	}
	tier, err := Classify(adjusted, party, table)
	if err != nil {
		return Report{}, err
	}
	n, err := monsterCount(monsters)
	if err != nil {
		return Report{}, err
	}
	return Report{
		TotalXP:    total,
		AdjustedXP: adjusted,
		Monsters:   n,
		Thresholds: th,
		Tier:       tier,
	}, nil
}
