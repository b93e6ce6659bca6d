// Package content loads the reference data generators draw from: weighted
// tables, name catalogs, CR→XP and XP-threshold tables, and generator scripts.
//
// Data is read from an fs.FS laid out as:
//
//	tables/*.yaml
//	names/*.yaml
//	encounter/cr_xp.yaml
//	encounter/thresholds.yaml
//	scripts/*.lua
//
// Default returns the library embedded in the binary; LoadDir reads an
// on-disk override with the same layout.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/game/namegen"
	"github.com/cory-johannsen/loreforge/internal/game/table"
)

//go:embed defaults
var defaults embed.FS

var (
	// ErrUnknownTable reports a table id absent from the library.
	ErrUnknownTable = errors.New("content: unknown table")
	// ErrUnknownCatalog reports a name catalog id absent from the library.
	ErrUnknownCatalog = errors.New("content: unknown name catalog")
)

// TableDef is a loaded weighted table and its metadata.
type TableDef struct {
	ID    string
	Title string
	Kind  Kind
	Table *table.Table[Row]
}

// NameCatalog is a loaded token catalog with the patterns it supports.
type NameCatalog struct {
	ID       string
	Title    string
	Patterns []string
	Tokens   namegen.Catalog
}

// Library is the immutable set of content a generator run may use.
type Library struct {
	Tables     map[string]*TableDef
	Catalogs   map[string]*NameCatalog
	CRTable    encounter.CRTable
	Thresholds encounter.ThresholdTable
	Scripts    map[string]string
}

// Default loads the embedded default library.
func Default() (*Library, error) {
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		return nil, fmt.Errorf("content: opening embedded defaults: %w", err)
	}
	return Load(sub)
}

// LoadDir loads a library from dir.
//
// Precondition: dir must be a readable directory with the package layout.
func LoadDir(dir string) (*Library, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	return Load(os.DirFS(dir))
}

// Table returns the table with id.
func (l *Library) Table(id string) (*TableDef, error) {
	t, ok := l.Tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, id)
	}
	return t, nil
}

// Catalog returns the name catalog with id.
func (l *Library) Catalog(id string) (*NameCatalog, error) {
	c, ok := l.Catalogs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCatalog, id)
	}
	return c, nil
}

// TableIDs returns every table id in sorted order.
func (l *Library) TableIDs() []string { return sortedKeys(l.Tables) }

// CatalogIDs returns every catalog id in sorted order.
func (l *Library) CatalogIDs() []string { return sortedKeys(l.Catalogs) }

// ScriptNames returns every generator script name in sorted order.
func (l *Library) ScriptNames() []string { return sortedKeys(l.Scripts) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample draws n rows from the table id with replacement and rolls any dice
// notation they carry.
func (l *Library) Sample(id string, n int, src dice.Source) ([]Row, error) {
	def, err := l.Table(id)
	if err != nil {
		return nil, err
	}
	rows, err := table.SampleMany(def.Table, n, src)
	if err != nil {
		return nil, fmt.Errorf("content: sampling %q: %w", id, err)
	}
	for i, r := range rows {
		if rows[i], err = r.Roll(src); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Name expands pattern against the catalog id. An empty pattern selects one
// of the catalog's own patterns uniformly, taking one Intn draw first.
func (l *Library) Name(id, pattern string, src dice.Source) (string, error) {
	c, err := l.Catalog(id)
	if err != nil {
		return "", err
	}
	if pattern == "" {
		if len(c.Patterns) == 0 {
			return "", fmt.Errorf("content: catalog %q has no patterns", id)
		}
		pattern = c.Patterns[src.Intn(len(c.Patterns))]
	}
	return namegen.Expand(pattern, c.Tokens, src)
}
