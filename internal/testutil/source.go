// Package testutil provides deterministic test doubles shared across packages.
package testutil

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
)

// FixedSource implements dice.Source by replaying predetermined values.
//
// Intn returns the queued ints in order; Float64 returns the queued floats in
// order. Running out of values, or queuing an int outside [0, n), panics so a
// miscounted test fails loudly.
type FixedSource struct {
	mu       sync.Mutex
	ints     []int
	floats   []float64
	intIdx   int
	floatIdx int
}

var _ dice.Source = (*FixedSource)(nil)

// NewFixedSource returns a FixedSource replaying ints from Intn.
func NewFixedSource(ints ...int) *FixedSource {
	return &FixedSource{ints: ints}
}

// DieFaces returns a FixedSource whose Intn calls produce the given die faces
// when used by dice.Roll (each face is queued as face-1).
func DieFaces(faces ...int) *FixedSource {
	ints := make([]int, len(faces))
	for i, f := range faces {
		ints[i] = f - 1
	}
	return NewFixedSource(ints...)
}

// WithFloats queues values for Float64 and returns f.
func (f *FixedSource) WithFloats(floats ...float64) *FixedSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.floats = append(f.floats, floats...)
	return f
}

// Intn returns the next queued int.
func (f *FixedSource) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intIdx >= len(f.ints) {
		panic(fmt.Sprintf("testutil: no more Intn values (used %d)", f.intIdx))
	}
	v := f.ints[f.intIdx]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("testutil: queued Intn value %d outside [0, %d)", v, n))
	}
	f.intIdx++
	return v
}

// Float64 returns the next queued float.
func (f *FixedSource) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.floatIdx >= len(f.floats) {
		panic(fmt.Sprintf("testutil: no more Float64 values (used %d)", f.floatIdx))
	}
	v := f.floats[f.floatIdx]
	f.floatIdx++
	return v
}

// Draws returns the number of Intn and Float64 values consumed so far.
func (f *FixedSource) Draws() (ints, floats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intIdx, f.floatIdx
}
