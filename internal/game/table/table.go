// Package table implements weighted random tables: loot, rooms, encounters and
// any other roll-on-a-chart content.
package table

import (
	"errors"
	"fmt"
	"math"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
)

var (
	// ErrEmptyTable reports a table with no entries.
	ErrEmptyTable = errors.New("table: empty table")
	// ErrInvalidWeight reports an entry whose weight is not a finite number > 0.
	ErrInvalidWeight = errors.New("table: invalid weight")
	// ErrInvalidCount reports a non-positive sample count.
	ErrInvalidCount = errors.New("table: invalid sample count")
)

// Entry is one row of a weighted table.
type Entry[T any] struct {
	Value  T
	Weight float64
}

// Table is an immutable, validated weighted table.
//
// Invariant: len(entries) >= 1; every weight is finite and > 0;
// cumulative[i] == sum(entries[0..i].Weight).
type Table[T any] struct {
	entries    []Entry[T]
	cumulative []float64
}

// New validates entries and builds a Table. Validation happens once here so
// repeated sampling pays no validation cost.
//
// Postcondition: Returns a non-nil Table, or ErrEmptyTable / ErrInvalidWeight.
func New[T any](entries ...Entry[T]) (*Table[T], error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table[T]{
		entries:    make([]Entry[T], len(entries)),
		cumulative: make([]float64, len(entries)),
	}
	total := 0.0
	for i, e := range entries {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight <= 0 {
			return nil, fmt.Errorf("%w: entry[%d] weight %v must be a finite number > 0", ErrInvalidWeight, i, e.Weight)
		}
		total += e.Weight
		t.entries[i] = e
		t.cumulative[i] = total
	}
	if math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: total weight overflows", ErrInvalidWeight)
	}
	return t, nil
}

// MustNew is New that panics on error. Useful for package-level tables.
func MustNew[T any](entries ...Entry[T]) *Table[T] {
	t, err := New(entries...)
	if err != nil {
		panic("table: MustNew: " + err.Error())
	}
	return t
}

// Len returns the number of entries.
func (t *Table[T]) Len() int { return len(t.entries) }

// Total returns the sum of all weights.
func (t *Table[T]) Total() float64 { return t.cumulative[len(t.cumulative)-1] }

// Entries returns a copy of the table's entries in order.
func (t *Table[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(t.entries))
	copy(out, t.entries)
	return out
}

// pick maps r in [0, Total) onto an entry index. Each entry owns the half-open
// interval [cumulative[i-1], cumulative[i]), so r landing exactly on a boundary
// selects the later entry.
func (t *Table[T]) pick(r float64) int {
	for i, c := range t.cumulative {
		if c > r {
			return i
		}
	}
	// r rounded up to Total.
	return len(t.cumulative) - 1
}

// SampleOne draws a single value from t, consuming one Float64 from src.
//
// Precondition: src must be non-nil.
// Postcondition: returns a value from t, or ErrEmptyTable if t is nil.
func SampleOne[T any](t *Table[T], src dice.Source) (T, error) {
	if t == nil || len(t.entries) == 0 {
		var zero T
		return zero, ErrEmptyTable
	}
	return t.entries[t.pick(src.Float64()*t.Total())].Value, nil
}

// SampleMany draws n values with replacement; duplicates are expected.
// Callers needing distinct values must de-duplicate themselves.
//
// Postcondition: len(result) == n, or ErrInvalidCount when n < 1.
func SampleMany[T any](t *Table[T], n int, src dice.Source) ([]T, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := SampleOne(t, src)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
