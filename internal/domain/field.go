package domain

import (
	"fmt"
	"iter"
	"math"
)

// FieldSpec describes one wind-field build.
type FieldSpec struct {
	BBox       BoundingBox
	StdDev     float64
	Levels     []Level
	BaseSeed   int64
	Tropopause float64
	Bias       Bias
}

// WindField3D maps height levels to their grids, in the order the levels
// were requested. A field is not modified after BuildWindField3D returns.
type WindField3D struct {
	bbox     BoundingBox
	std      float64
	baseSeed int64
	order    []Level
	grids    map[Level]*WindGrid2D
}

// levelSeedStride is the per-level seed advance: one seed for u, one for v.
const levelSeedStride = 2

// BuildWindField3D generates and biases one grid per level. Level i uses
// seed BaseSeed+2i for u and BaseSeed+2i+1 for v. Any failure aborts the
// build and no field is returned.
func BuildWindField3D(spec FieldSpec) (*WindField3D, error) {
	if err := spec.BBox.Validate(); err != nil {
		return nil, err
	}
	if err := checkStdDev("std", spec.StdDev); err != nil {
		return nil, err
	}
	if err := spec.Bias.validate(); err != nil {
		return nil, err
	}
	if err := CheckTropopause(spec.Tropopause); err != nil {
		return nil, err
	}
	if err := checkLevelKinds(spec.Levels); err != nil {
		return nil, err
	}
	if cells := spec.BBox.Size().Cells(); cellsExceed(cells, len(spec.Levels), MaxFieldCells) {
		return nil, inputError(ErrInvalidBoundingBox, "field_cells", fmt.Sprintf("%d x %d levels > %d", cells, len(spec.Levels), MaxFieldCells))
	}

	f := &WindField3D{
		bbox:     spec.BBox,
		std:      spec.StdDev,
		baseSeed: spec.BaseSeed,
		order:    make([]Level, 0, len(spec.Levels)),
		grids:    make(map[Level]*WindGrid2D, len(spec.Levels)),
	}

	var offset int64
	for _, level := range spec.Levels {
		if _, dup := f.grids[level]; dup {
			return nil, inputError(ErrDuplicateLevel, "level", level.String())
		}
		g, err := GenerateWindGrid2D(spec.BBox, level, spec.StdDev, spec.BaseSeed+offset)
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", level, err)
		}
		if err := ApplyBias(g, spec.Tropopause, spec.Bias); err != nil {
			return nil, fmt.Errorf("level %s: %w", level, err)
		}
		f.order = append(f.order, level)
		f.grids[level] = g
		offset += levelSeedStride
	}
	return f, nil
}

// NewWindField3D assembles a field from already generated grids, e.g. after
// decoding. Grids must share one shape and have distinct levels.
func NewWindField3D(bbox BoundingBox, std float64, baseSeed int64, grids []*WindGrid2D) (*WindField3D, error) {
	f := &WindField3D{
		bbox:     bbox,
		std:      std,
		baseSeed: baseSeed,
		order:    make([]Level, 0, len(grids)),
		grids:    make(map[Level]*WindGrid2D, len(grids)),
	}
	size := bbox.Size()
	for _, g := range grids {
		if err := g.checkShape(); err != nil {
			return nil, err
		}
		if !sameShape(g.Size(), size) {
			return nil, fmt.Errorf("level %s: shape %v does not match box shape %v", g.Level, g.Size(), size)
		}
		if _, dup := f.grids[g.Level]; dup {
			return nil, inputError(ErrDuplicateLevel, "level", g.Level.String())
		}
		f.order = append(f.order, g.Level)
		f.grids[g.Level] = g
	}
	return f, nil
}

// BBox returns the region the field covers.
func (f *WindField3D) BBox() BoundingBox { return f.bbox }

// Size returns the shape shared by every grid.
func (f *WindField3D) Size() GridSize { return f.bbox.Size() }

// StdDev returns the standard deviation the grids were sampled with.
func (f *WindField3D) StdDev() float64 { return f.std }

// BaseSeed returns the seed of the first level's u grid.
func (f *WindField3D) BaseSeed() int64 { return f.baseSeed }

// Len returns the number of levels.
func (f *WindField3D) Len() int { return len(f.order) }

// Levels returns the levels in request order.
func (f *WindField3D) Levels() []Level {
	return append([]Level(nil), f.order...)
}

// Get returns the grid for level.
func (f *WindField3D) Get(level Level) (*WindGrid2D, bool) {
	g, ok := f.grids[level]
	return g, ok
}

// All iterates levels and grids in request order.
func (f *WindField3D) All() iter.Seq2[Level, *WindGrid2D] {
	return func(yield func(Level, *WindGrid2D) bool) {
		for _, l := range f.order {
			if !yield(l, f.grids[l]) {
				return
			}
		}
	}
}

// Equal reports whether two fields hold the same levels in the same order
// with bit-identical grids.
func (f *WindField3D) Equal(o *WindField3D) bool {
	if f.Len() != o.Len() || f.Size() != o.Size() {
		return false
	}
	for i, l := range f.order {
		if o.order[i] != l || !f.grids[l].Equal(o.grids[l]) {
			return false
		}
	}
	return true
}

// Perturbed returns a copy of f with kind applied to every level. Level i
// draws from a source seeded with seed+2i. f itself is left unchanged.
func (f *WindField3D) Perturbed(kind Perturbation, sigma float64, seed int64) (*WindField3D, error) {
	if err := checkStdDev("perturbation_sigma", sigma); err != nil {
		return nil, err
	}
	if _, ok := perturbationNames[kind]; !ok {
		return nil, inputError(ErrUnknownPerturbation, "perturbation", uint8(kind))
	}

	out := &WindField3D{
		bbox:     f.bbox,
		std:      f.std,
		baseSeed: f.baseSeed,
		order:    f.Levels(),
		grids:    make(map[Level]*WindGrid2D, len(f.grids)),
	}
	for i, l := range f.order {
		g := f.grids[l].Clone()
		if err := g.Perturb(kind, sigma, NewRandomSource(seed+int64(i)*levelSeedStride)); err != nil {
			return nil, fmt.Errorf("level %s: %w", l, err)
		}
		out.grids[l] = g
	}
	return out, nil
}

func (f *WindField3D) String() string {
	return fmt.Sprintf("wind field %d levels (%dx%d) std=%g", f.Len(), f.Size().Rows, f.Size().Cols, f.std)
}

// sameShape treats every empty shape as equal: an empty grid carries no
// matrix to take a row or column count from.
func sameShape(a, b GridSize) bool {
	if a.Empty() && b.Empty() {
		return true
	}
	return a == b
}

// CheckTropopause rejects a non-finite tropopause.
func CheckTropopause(hPa float64) error {
	if math.IsNaN(hPa) || math.IsInf(hPa, 0) {
		return inputError(ErrInvalidTropopause, "tropopause", hPa)
	}
	return nil
}

// checkLevelKinds requires every level of a field to be of one kind.
func checkLevelKinds(levels []Level) error {
	for _, l := range levels[min(1, len(levels)):] {
		if l.Kind != levels[0].Kind {
			return inputError(ErrTypeMismatch, "level", l.String())
		}
	}
	return nil
}
