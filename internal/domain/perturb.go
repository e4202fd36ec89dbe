package domain

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Perturbation selects one of the mutually exclusive randomization
// strategies applied to a generated grid.
type Perturbation uint8

const (
	PerturbNone Perturbation = iota
	// PerturbFullRandom multiplies every cell by its own Normal(0, sigma) draw.
	PerturbFullRandom
	// PerturbUniformScale multiplies all of u by one draw and all of v by
	// another.
	PerturbUniformScale
	// PerturbGradientScale multiplies by a matrix interpolated between four
	// randomly scaled corners.
	PerturbGradientScale
)

var perturbationNames = map[Perturbation]string{
	PerturbNone:          "none",
	PerturbFullRandom:    "full_random",
	PerturbUniformScale:  "uniform_scale",
	PerturbGradientScale: "gradient_scale",
}

func (p Perturbation) String() string {
	if s, ok := perturbationNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Perturbation(%d)", uint8(p))
}

// ParsePerturbation maps a strategy name to its Perturbation. The empty
// string means PerturbNone.
func ParsePerturbation(s string) (Perturbation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PerturbNone, nil
	}
	for p, name := range perturbationNames {
		if name == s {
			return p, nil
		}
	}
	return 0, inputError(ErrUnknownPerturbation, "perturbation", s)
}

func (p Perturbation) MarshalText() ([]byte, error) {
	if _, ok := perturbationNames[p]; !ok {
		return nil, inputError(ErrUnknownPerturbation, "perturbation", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Perturbation) UnmarshalText(text []byte) error {
	v, err := ParsePerturbation(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Perturb applies kind to g in place, drawing scale factors from
// Normal(0, sigma) with rng. u is always drawn before v.
func (g *WindGrid2D) Perturb(kind Perturbation, sigma float64, rng *RandomSource) error {
	if err := checkStdDev("perturbation_sigma", sigma); err != nil {
		return err
	}
	if err := g.checkShape(); err != nil {
		return err
	}
	size := g.Size()
	switch kind {
	case PerturbNone:
	case PerturbFullRandom:
		mu := rng.NormalMatrix(size, sigma)
		mv := rng.NormalMatrix(size, sigma)
		g.mulElem(mu, mv)
	case PerturbUniformScale:
		su := rng.Normal(0, sigma)
		sv := rng.Normal(0, sigma)
		g.scale(su, sv)
	case PerturbGradientScale:
		mu, _ := GradientScale(size, sigma, rng)
		mv, _ := GradientScale(size, sigma, rng)
		g.mulElem(mu, mv)
	default:
		return inputError(ErrUnknownPerturbation, "perturbation", uint8(kind))
	}
	return nil
}

// Corners are the four scale factors of a gradient matrix, in draw order
// (counterclockwise from the top-left).
type Corners struct {
	TopLeft     float64
	BottomLeft  float64
	BottomRight float64
	TopRight    float64
}

// GradientScale draws four corner factors from Normal(0, sigma) and returns
// the size-shaped matrix interpolated between them: the left column runs
// TopLeft→BottomLeft, the right column TopRight→BottomRight, and each row is
// interpolated linearly between its two edge values.
func GradientScale(size GridSize, sigma float64, rng *RandomSource) (*mat.Dense, Corners) {
	c := Corners{
		TopLeft:     rng.Normal(0, sigma),
		BottomLeft:  rng.Normal(0, sigma),
		BottomRight: rng.Normal(0, sigma),
		TopRight:    rng.Normal(0, sigma),
	}
	if size.Empty() {
		return &mat.Dense{}, c
	}

	left := linspace(make([]float64, size.Rows), c.TopLeft, c.BottomLeft)
	right := linspace(make([]float64, size.Rows), c.TopRight, c.BottomRight)
	m := mat.NewDense(size.Rows, size.Cols, nil)
	for i := range size.Rows {
		linspace(m.RawRowView(i), left[i], right[i])
	}
	return m, c
}

// linspace fills dst with evenly spaced values from lo to hi inclusive. A
// single-element dst holds lo.
func linspace(dst []float64, lo, hi float64) []float64 {
	switch len(dst) {
	case 0:
		return dst
	case 1:
		dst[0] = lo
		return dst
	}
	floats.Span(dst, lo, hi)
	dst[len(dst)-1] = hi
	return dst
}
