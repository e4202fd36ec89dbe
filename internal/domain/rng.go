package domain

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomSource is a seeded generator for normal and uniform draws. Two
// sources built from the same seed produce the same sequence. A source is
// owned by a single build and must not be shared across goroutines.
type RandomSource struct {
	src rand.Source
}

// NewRandomSource returns a PCG-backed source seeded with seed.
func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{src: rand.NewPCG(uint64(seed), pcgStream)}
}

// pcgStream is the fixed second PCG seed word; only the first word varies.
const pcgStream = 0x9e3779b97f4a7c15

// Normal draws one sample from Normal(mu, sigma).
func (r *RandomSource) Normal(mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: r.src}.Rand()
}

// Uniform draws one sample from Uniform[lo, hi).
func (r *RandomSource) Uniform(lo, hi float64) float64 {
	return distuv.Uniform{Min: lo, Max: hi, Src: r.src}.Rand()
}

// NormalMatrix fills a size-shaped matrix from Normal(0, sigma) in row-major
// order.
func (r *RandomSource) NormalMatrix(size GridSize, sigma float64) *mat.Dense {
	if size.Empty() {
		return &mat.Dense{}
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: r.src}
	data := make([]float64, size.Cells())
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(size.Rows, size.Cols, data)
}
