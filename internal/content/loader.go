package content

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/namegen"
	"github.com/cory-johannsen/loreforge/internal/game/table"
)

// MaxLevel is the highest character level a threshold table must cover.
const MaxLevel = 20

type tableDoc struct {
	ID      string     `yaml:"id" validate:"required"`
	Title   string     `yaml:"title"`
	Kind    Kind       `yaml:"kind" validate:"required,oneof=text loot room encounter"`
	Entries []entryDoc `yaml:"entries" validate:"required,min=1,dive"`
}

type entryDoc struct {
	Weight    float64       `yaml:"weight"`
	Text      string        `yaml:"text"`
	Loot      *Loot         `yaml:"loot"`
	Room      *Room         `yaml:"room"`
	Encounter *EncounterRow `yaml:"encounter"`
}

type namesDoc struct {
	ID       string              `yaml:"id" validate:"required"`
	Title    string              `yaml:"title"`
	Patterns []string            `yaml:"patterns" validate:"required,min=1"`
	Tokens   map[string][]string `yaml:"tokens" validate:"required,min=1"`
}

type crDoc struct {
	Ratings []struct {
		CR encounter.CR `yaml:"cr"`
		XP int          `yaml:"xp" validate:"gte=0"`
	} `yaml:"ratings" validate:"required,min=1,dive"`
}

type thresholdsDoc struct {
	Levels []struct {
		Level  int `yaml:"level" validate:"min=1,max=20"`
		Easy   int `yaml:"easy"`
		Medium int `yaml:"medium"`
		Hard   int `yaml:"hard"`
		Deadly int `yaml:"deadly"`
	} `yaml:"levels" validate:"required,min=1,dive"`
}

type loader struct {
	fsys     fs.FS
	validate *validator.Validate
}

// Load reads and validates a complete library from fsys.
//
// Postcondition: every table is non-empty with positive weights, every
// catalog pattern resolves against its tokens, and the threshold table covers
// levels 1 through MaxLevel. Any violation is returned naming the file.
func Load(fsys fs.FS) (*Library, error) {
	ld := &loader{fsys: fsys, validate: validator.New()}
	lib := &Library{
		Tables:   make(map[string]*TableDef),
		Catalogs: make(map[string]*NameCatalog),
		Scripts:  make(map[string]string),
	}

	if err := ld.each("tables", ".yaml", func(p string, data []byte) error {
		def, err := ld.table(data)
		if err != nil {
			return err
		}
		if _, dup := lib.Tables[def.ID]; dup {
			return fmt.Errorf("duplicate table id %q", def.ID)
		}
		lib.Tables[def.ID] = def
		return nil
	}); err != nil {
		return nil, err
	}

	if err := ld.each("names", ".yaml", func(p string, data []byte) error {
		c, err := ld.catalog(data)
		if err != nil {
			return err
		}
		if _, dup := lib.Catalogs[c.ID]; dup {
			return fmt.Errorf("duplicate catalog id %q", c.ID)
		}
		lib.Catalogs[c.ID] = c
		return nil
	}); err != nil {
		return nil, err
	}

	var err error
	if lib.CRTable, err = ld.crTable("encounter/cr_xp.yaml"); err != nil {
		return nil, err
	}
	if lib.Thresholds, err = ld.thresholds("encounter/thresholds.yaml"); err != nil {
		return nil, err
	}
	if err := checkEncounterCRs(lib); err != nil {
		return nil, err
	}

	if err := ld.each("scripts", ".lua", func(p string, data []byte) error {
		lib.Scripts[strings.TrimSuffix(path.Base(p), ".lua")] = string(data)
		return nil
	}); err != nil {
		return nil, err
	}
	return lib, nil
}

// each calls fn for every file in dir with the given extension. A missing
// directory is treated as empty.
func (ld *loader) each(dir, ext string, fn func(p string, data []byte) error) error {
	entries, err := fs.ReadDir(ld.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("content: reading directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ext {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(ld.fsys, p)
		if err != nil {
			return fmt.Errorf("content: reading %s: %w", p, err)
		}
		if err := fn(p, data); err != nil {
			return fmt.Errorf("content: %s: %w", p, err)
		}
	}
	return nil
}

func (ld *loader) decode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	if err := ld.validate.Struct(out); err != nil {
		return fmt.Errorf("validating: %w", err)
	}
	return nil
}

func (ld *loader) table(data []byte) (*TableDef, error) {
	var doc tableDoc
	if err := ld.decode(data, &doc); err != nil {
		return nil, err
	}
	entries := make([]table.Entry[Row], len(doc.Entries))
	for i, e := range doc.Entries {
		row := Row{Kind: doc.Kind, Text: e.Text, Loot: e.Loot, Room: e.Room, Encounter: e.Encounter}
		if err := row.validate(); err != nil {
			return nil, fmt.Errorf("entry[%d]: %w", i, err)
		}
		entries[i] = table.Entry[Row]{Value: row, Weight: e.Weight}
	}
	t, err := table.New(entries...)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", doc.ID, err)
	}
	return &TableDef{ID: doc.ID, Title: doc.Title, Kind: doc.Kind, Table: t}, nil
}

func (ld *loader) catalog(data []byte) (*NameCatalog, error) {
	var doc namesDoc
	if err := ld.decode(data, &doc); err != nil {
		return nil, err
	}
	tokens := namegen.Catalog(doc.Tokens)
	if err := tokens.Validate(); err != nil {
		return nil, err
	}
	for _, p := range doc.Patterns {
		if err := checkResolves(p, tokens); err != nil {
			return nil, err
		}
	}
	for name, candidates := range tokens {
		for _, c := range candidates {
			if err := checkResolves(c, tokens); err != nil {
				return nil, fmt.Errorf("token %q: %w", name, err)
			}
		}
	}
	return &NameCatalog{ID: doc.ID, Title: doc.Title, Patterns: doc.Patterns, Tokens: tokens}, nil
}

// checkEncounterCRs fails when an encounter row names a CR missing from the
// loaded CR table.
func checkEncounterCRs(lib *Library) error {
	for _, id := range lib.TableIDs() {
		def := lib.Tables[id]
		if def.Kind != KindEncounter {
			continue
		}
		for i, e := range def.Table.Entries() {
			enc := e.Value.Encounter
			if _, ok := lib.CRTable[enc.CR]; !ok {
				return fmt.Errorf("content: table %q entry[%d]: %w: %s has CR %s, absent from encounter/cr_xp.yaml",
					id, i, encounter.ErrUnknownCR, enc.Monster, enc.CR)
			}
		}
	}
	return nil
}

// checkResolves fails when text references a token missing from tokens.
func checkResolves(text string, tokens namegen.Catalog) error {
	names, err := namegen.Tokens(text)
	if err != nil {
		return err
	}
	for _, n := range names {
		if _, ok := tokens[n]; !ok {
			return &namegen.ExpansionError{Token: n, Pattern: text, Kind: namegen.ErrUnknownToken}
		}
	}
	return nil
}

func (ld *loader) crTable(p string) (encounter.CRTable, error) {
	data, err := fs.ReadFile(ld.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("content: reading %s: %w", p, err)
	}
	var doc crDoc
	if err := ld.decode(data, &doc); err != nil {
		return nil, fmt.Errorf("content: %s: %w", p, err)
	}
	t := make(encounter.CRTable, len(doc.Ratings))
	for _, r := range doc.Ratings {
		if !r.CR.Valid() {
			return nil, fmt.Errorf("content: %s: rating missing cr", p)
		}
		if _, dup := t[r.CR]; dup {
			return nil, fmt.Errorf("content: %s: duplicate cr %s", p, r.CR)
		}
		t[r.CR] = r.XP
	}
	return t, nil
}

func (ld *loader) thresholds(p string) (encounter.ThresholdTable, error) {
	data, err := fs.ReadFile(ld.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("content: reading %s: %w", p, err)
	}
	var doc thresholdsDoc
	if err := ld.decode(data, &doc); err != nil {
		return nil, fmt.Errorf("content: %s: %w", p, err)
	}
	t := make(encounter.ThresholdTable, len(doc.Levels))
	for _, l := range doc.Levels {
		if _, dup := t[l.Level]; dup {
			return nil, fmt.Errorf("content: %s: duplicate level %d", p, l.Level)
		}
		t[l.Level] = encounter.Thresholds{Easy: l.Easy, Medium: l.Medium, Hard: l.Hard, Deadly: l.Deadly}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("content: %s: %w", p, err)
	}
	for lvl := 1; lvl <= MaxLevel; lvl++ {
		if _, ok := t[lvl]; !ok {
			return nil, fmt.Errorf("content: %s: missing level %d", p, lvl)
		}
	}
	return t, nil
}
