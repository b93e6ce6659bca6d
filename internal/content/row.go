package content

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
)

// Kind tags the payload carried by a Row.
type Kind string

const (
	KindText      Kind = "text"
	KindLoot      Kind = "loot"
	KindRoom      Kind = "room"
	KindEncounter Kind = "encounter"
)

// Loot is a treasure row. Amount may embed dice notation, e.g. "2d6x10 gp".
type Loot struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Amount string `yaml:"amount,omitempty" json:"amount,omitempty"`
}

// Room is a dungeon room row.
type Room struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Feature string `yaml:"feature,omitempty" json:"feature,omitempty"`
}

// EncounterRow is a wandering-monster row. Count is a plain number or dice
// notation such as "1d4+1" whose lowest possible total is at least 1.
type EncounterRow struct {
	Monster string       `yaml:"monster" json:"monster" validate:"required"`
	CR      encounter.CR `yaml:"cr" json:"cr"`
	Count   string       `yaml:"count" json:"count" validate:"required"`
}

// Group rolls the row's count and returns the monster group it describes.
func (e EncounterRow) Group(src dice.Source) (encounter.Group, error) {
	count, err := rollCount(e.Count, src)
	if err != nil {
		return encounter.Group{}, fmt.Errorf("content: encounter %q: %w", e.Monster, err)
	}
	return encounter.Group{CR: e.CR, Count: count}, nil
}

// checkCount rejects counts that could produce fewer than one monster.
func checkCount(s string) error {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return fmt.Errorf("count %d must be >= 1", n)
		}
		return nil
	}
	e, err := dice.Parse(s)
	if err != nil {
		return err
	}
	if low := e.Count + e.Modifier; low < 1 {
		return fmt.Errorf("count %q can roll %d, must never roll below 1", s, low)
	}
	return nil
}

func rollCount(s string, src dice.Source) (int, error) {
	if err := checkCount(s); err != nil {
		return 0, err
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	r, err := dice.RollExpr(s, src)
	if err != nil {
		return 0, err
	}
	return r.Total(), nil
}

// Row is the value type of every content table: a tagged variant whose Kind
// selects exactly one populated payload.
type Row struct {
	Kind      Kind          `json:"kind"`
	Text      string        `json:"text,omitempty"`
	Loot      *Loot         `json:"loot,omitempty"`
	Room      *Room         `json:"room,omitempty"`
	Encounter *EncounterRow `json:"encounter,omitempty"`
}

// String renders the row for display.
func (r Row) String() string {
	switch r.Kind {
	case KindLoot:
		if r.Loot.Amount == "" {
			return r.Loot.Name
		}
		return r.Loot.Amount + " " + r.Loot.Name
	case KindRoom:
		if r.Room.Feature == "" {
			return r.Room.Name
		}
		return r.Room.Name + ": " + r.Room.Feature
	case KindEncounter:
		return fmt.Sprintf("%s %s (CR %s)", r.Encounter.Count, r.Encounter.Monster, r.Encounter.CR)
	default:
		return r.Text
	}
}

// Roll returns a copy of r with every embedded dice span rolled. Draws are
// taken in field order so a deterministic Source yields a deterministic row.
func (r Row) Roll(src dice.Source) (Row, error) {
	out := r
	var err error
	switch r.Kind {
	case KindText:
		out.Text, err = dice.RollInline(r.Text, src)
	case KindLoot:
		l := *r.Loot
		l.Amount, err = dice.RollInline(l.Amount, src)
		out.Loot = &l
	case KindRoom:
		rm := *r.Room
		if rm.Name, err = dice.RollInline(rm.Name, src); err == nil {
			rm.Feature, err = dice.RollInline(rm.Feature, src)
		}
		out.Room = &rm
	case KindEncounter:
		e := *r.Encounter
		var n int
		if n, err = rollCount(e.Count, src); err == nil {
			e.Count = strconv.Itoa(n)
		}
		out.Encounter = &e
	}
	if err != nil {
		return Row{}, fmt.Errorf("content: rolling %s row: %w", r.Kind, err)
	}
	return out, nil
}

// validate checks that exactly the payload named by Kind is set.
func (r Row) validate() error {
	set := 0
	if r.Text != "" {
		set++
	}
	for _, p := range []bool{r.Loot != nil, r.Room != nil, r.Encounter != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("row must carry exactly one payload, found %d", set)
	}
	ok := false
	switch r.Kind {
	case KindText:
		ok = r.Text != ""
	case KindLoot:
		ok = r.Loot != nil
	case KindRoom:
		ok = r.Room != nil
	case KindEncounter:
		ok = r.Encounter != nil && r.Encounter.CR.Valid()
	}
	if !ok {
		return fmt.Errorf("row payload does not match kind %q", r.Kind)
	}
	if r.Kind == KindEncounter {
		return checkCount(r.Encounter.Count)
	}
	return nil
}
