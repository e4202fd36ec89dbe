package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// WindGrid2D holds the u (east-west) and v (north-south) wind components of
// one height level. The shape is that of U; V must match it. An empty grid
// carries zero-value matrices.
type WindGrid2D struct {
	Level Level
	Seed  int64
	U     *mat.Dense
	V     *mat.Dense
}

// GenerateWindGrid2D samples u from Normal(0, std) seeded with seed and v
// from Normal(0, std) seeded with seed+1 over the box's grid.
func GenerateWindGrid2D(bbox BoundingBox, level Level, std float64, seed int64) (*WindGrid2D, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := checkStdDev("std", std); err != nil {
		return nil, err
	}
	if err := level.validate(); err != nil {
		return nil, err
	}

	size := bbox.Size()
	return &WindGrid2D{
		Level: level,
		Seed:  seed,
		U:     NewRandomSource(seed).NormalMatrix(size, std),
		V:     NewRandomSource(seed+1).NormalMatrix(size, std),
	}, nil
}

// WindGridFromData rebuilds a grid from row-major u and v values.
func WindGridFromData(level Level, seed int64, size GridSize, u, v []float64) (*WindGrid2D, error) {
	if size.Rows < 0 || size.Cols < 0 {
		return nil, inputError(ErrInvalidBoundingBox, "size", size)
	}
	if len(u) != size.Cells() || len(v) != size.Cells() {
		return nil, fmt.Errorf("grid %s: want %d cells, got u=%d v=%d", level, size.Cells(), len(u), len(v))
	}
	g := &WindGrid2D{Level: level, Seed: seed, U: &mat.Dense{}, V: &mat.Dense{}}
	if !size.Empty() {
		g.U = mat.NewDense(size.Rows, size.Cols, append([]float64(nil), u...))
		g.V = mat.NewDense(size.Rows, size.Cols, append([]float64(nil), v...))
	}
	return g, nil
}

// Size returns the grid shape, taken from U.
func (g *WindGrid2D) Size() GridSize { return denseSize(g.U) }

// UData returns a row-major copy of u.
func (g *WindGrid2D) UData() []float64 { return flatten(g.U) }

// VData returns a row-major copy of v.
func (g *WindGrid2D) VData() []float64 { return flatten(g.V) }

// Clone returns a deep copy.
func (g *WindGrid2D) Clone() *WindGrid2D {
	c := *g
	c.U = cloneDense(g.U)
	c.V = cloneDense(g.V)
	return &c
}

// checkShape reports a grid whose components differ in shape.
func (g *WindGrid2D) checkShape() error {
	if u, v := denseSize(g.U), denseSize(g.V); u != v {
		return fmt.Errorf("grid %s: u is %dx%d but v is %dx%d", g.Level, u.Rows, u.Cols, v.Rows, v.Cols)
	}
	return nil
}

// Equal reports whether both grids have the same level, shape and
// bit-identical components.
func (g *WindGrid2D) Equal(o *WindGrid2D) bool {
	if g.Level != o.Level || g.Size() != o.Size() {
		return false
	}
	return bitsEqual(g.UData(), o.UData()) && bitsEqual(g.VData(), o.VData())
}

func (g *WindGrid2D) String() string {
	return fmt.Sprintf("wind grid %s (%dx%d)", g.Level, g.Size().Rows, g.Size().Cols)
}

// addScalar adds du to every u cell and dv to every v cell.
func (g *WindGrid2D) addScalar(du, dv float64) {
	if g.Size().Empty() {
		return
	}
	g.U.Apply(func(_, _ int, x float64) float64 { return x + du }, g.U)
	g.V.Apply(func(_, _ int, x float64) float64 { return x + dv }, g.V)
}

// scale multiplies u by su and v by sv.
func (g *WindGrid2D) scale(su, sv float64) {
	if g.Size().Empty() {
		return
	}
	g.U.Scale(su, g.U)
	g.V.Scale(sv, g.V)
}

// mulElem multiplies u and v element-wise by mu and mv.
func (g *WindGrid2D) mulElem(mu, mv *mat.Dense) {
	if g.Size().Empty() {
		return
	}
	g.U.MulElem(g.U, mu)
	g.V.MulElem(g.V, mv)
}

func checkStdDev(field string, std float64) error {
	if math.IsNaN(std) || std < 0 {
		return inputError(ErrNegativeStdDev, field, std)
	}
	return nil
}

func denseSize(m *mat.Dense) GridSize {
	if m == nil || m.IsEmpty() {
		return GridSize{}
	}
	r, c := m.Dims()
	return GridSize{Rows: r, Cols: c}
}

func flatten(m *mat.Dense) []float64 {
	size := denseSize(m)
	out := make([]float64, 0, size.Cells())
	for i := range size.Rows {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

func cloneDense(m *mat.Dense) *mat.Dense {
	if denseSize(m).Empty() {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(m)
}

func bitsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
