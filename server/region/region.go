// Package region implements cuboid regions spanned by two corner locations in
// the same world.
package region

import (
	"errors"
	"fmt"
	"iter"
	"sync"
)

var (
	// ErrWorldMismatch is returned when the corners of a region would end up in
	// different worlds.
	ErrWorldMismatch = errors.New("region corners are in different worlds")
	// ErrIncomplete is returned by operations that need both corners set.
	ErrIncomplete = errors.New("region is incomplete")
	// ErrInvalidLocation is returned when a location cannot be parsed.
	ErrInvalidLocation = errors.New("invalid location")
)

// Region is a cuboid spanned by a primary and a secondary corner. Either corner
// may be unset while a region is being selected. A Region is safe for
// concurrent use.
type Region struct {
	name string

	mu                 sync.RWMutex
	primary, secondary *Location
}

// New creates a region. primary and secondary may be nil. New fails with
// ErrWorldMismatch if both corners are set and lie in different worlds.
func New(name string, primary, secondary *Location) (*Region, error) {
	if err := checkWorlds(primary, secondary); err != nil {
		return nil, err
	}
	return &Region{name: name, primary: clone(primary), secondary: clone(secondary)}, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, primary, secondary Location) *Region {
	r, err := New(name, &primary, &secondary)
	if err != nil {
		panic(err)
	}
	return r
}

func checkWorlds(a, b *Location) error {
	if a != nil && b != nil && a.World != b.World {
		return fmt.Errorf("%w: %s and %s", ErrWorldMismatch, a.World, b.World)
	}
	return nil
}

func clone(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Name returns the name of the region.
func (r *Region) Name() string {
	return r.name
}

// Primary returns the primary corner, if set.
func (r *Region) Primary() (Location, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary == nil {
		return Location{}, false
	}
	return *r.primary, true
}

// Secondary returns the secondary corner, if set.
func (r *Region) Secondary() (Location, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.secondary == nil {
		return Location{}, false
	}
	return *r.secondary, true
}

// SetPrimary sets the primary corner. Passing nil unsets it.
func (r *Region) SetPrimary(l *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkWorlds(l, r.secondary); err != nil {
		return err
	}
	r.primary = clone(l)
	return nil
}

// SetSecondary sets the secondary corner. Passing nil unsets it.
func (r *Region) SetSecondary(l *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkWorlds(r.primary, l); err != nil {
		return err
	}
	r.secondary = clone(l)
	return nil
}

// Update replaces both corners at once.
func (r *Region) Update(primary, secondary *Location) error {
	if err := checkWorlds(primary, secondary); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary, r.secondary = clone(primary), clone(secondary)
	return nil
}

// Clone returns a copy of the region under a new name.
func (r *Region) Clone(name string) *Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Region{name: name, primary: clone(r.primary), secondary: clone(r.secondary)}
}

// IsWhole reports whether both corners are set.
func (r *Region) IsWhole() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary != nil && r.secondary != nil
}

// World returns the world of the region. It is empty if no corner is set.
func (r *Region) World() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.primary != nil:
		return r.primary.World
	case r.secondary != nil:
		return r.secondary.World
	}
	return ""
}

// Corners returns the lowest and highest block of the region on every axis.
// ok is false if the region is not whole.
func (r *Region) Corners() (min, max BlockPos, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary == nil || r.secondary == nil {
		return min, max, false
	}
	a, b := r.primary.Block(), r.secondary.Block()
	for i := range 3 {
		min[i], max[i] = minmax(a[i], b[i])
	}
	return min, max, true
}

func minmax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// Contains reports whether l lies within the region. The check is block
// based and inclusive on every axis.
func (r *Region) Contains(l Location) bool {
	min, max, ok := r.Corners()
	if !ok || l.World != r.World() {
		return false
	}
	return containsBlock(min, max, l.Block())
}

// ContainsBlock reports whether the block at pos lies within the region,
// ignoring the world.
func (r *Region) ContainsBlock(pos BlockPos) bool {
	min, max, ok := r.Corners()
	return ok && containsBlock(min, max, pos)
}

func containsBlock(min, max, pos BlockPos) bool {
	for i := range 3 {
		if pos[i] < min[i] || pos[i] > max[i] {
			return false
		}
	}
	return true
}

// Center returns the centre of the region.
func (r *Region) Center() (Location, error) {
	min, max, ok := r.Corners()
	if !ok {
		return Location{}, ErrIncomplete
	}
	lo, hi := min.Vec3(), max.Add(BlockPos{1, 1, 1}).Vec3()
	return Location{World: r.World(), Vec: lo.Add(hi).Mul(0.5)}, nil
}

// Volume returns the amount of blocks in the region, or 0 if it is not whole.
func (r *Region) Volume() int64 {
	min, max, ok := r.Corners()
	if !ok {
		return 0
	}
	v := int64(1)
	for i := range 3 {
		v *= int64(max[i] - min[i] + 1)
	}
	return v
}

// Blocks returns an iterator over every block in the region, ordered by X, then
// Z, then Y. It yields nothing if the region is not whole.
func (r *Region) Blocks() iter.Seq[BlockPos] {
	min, max, ok := r.Corners()
	return func(yield func(BlockPos) bool) {
		if !ok {
			return
		}
		for x := min[0]; x <= max[0]; x++ {
			for z := min[2]; z <= max[2]; z++ {
				for y := min[1]; y <= max[1]; y++ {
					if !yield(BlockPos{x, y, z}) {
						return
					}
				}
			}
		}
	}
}

// Intersects reports whether the region shares at least one block with o.
func (r *Region) Intersects(o *Region) bool {
	aMin, aMax, ok := r.Corners()
	if !ok {
		return false
	}
	bMin, bMax, ok := o.Corners()
	if !ok || r.World() != o.World() {
		return false
	}
	for i := range 3 {
		if aMax[i] < bMin[i] || bMax[i] < aMin[i] {
			return false
		}
	}
	return true
}

// Filter returns the values whose location, as returned by loc, lies within the
// region.
func Filter[T any](r *Region, values []T, loc func(T) Location) []T {
	var out []T
	for _, v := range values {
		if r.Contains(loc(v)) {
			out = append(out, v)
		}
	}
	return out
}

// String ...
func (r *Region) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	format := func(l *Location) string {
		if l == nil {
			return "unset"
		}
		return l.String()
	}
	return fmt.Sprintf("Region{name=%s, primary=%s, secondary=%s}", r.name, format(r.primary), format(r.secondary))
}
