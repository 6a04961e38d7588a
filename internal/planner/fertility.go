// Package planner suggests where to build. Suggestions are advisory: the
// placement authority still validates every commit.
package planner

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/homestead/internal/grid"
)

// Fertility is a per-cell soil quality field in [0, 1].
type Fertility struct {
	rows, cols int
	values     []float64
}

// NewFertility generates a field from multi-octave simplex noise. The same
// seed always yields the same field.
func NewFertility(rows, cols int, seed int64) *Fertility {
	noise := opensimplex.NewNormalized(seed)
	f := &Fertility{rows: rows, cols: cols, values: make([]float64, rows*cols)}
	for x := 0; x < rows; x++ {
		for y := 0; y < cols; y++ {
			f.values[x*cols+y] = octaveNoise(noise, float64(x), float64(y), 4, 0.08, 0.5)
		}
	}
	return f
}

// octaveNoise combines multiple octaves of noise for natural-looking variation.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// At returns the fertility of a cell, 0 outside the field.
func (f *Fertility) At(c grid.Cell) float64 {
	if c.X < 0 || c.X >= f.rows || c.Y < 0 || c.Y >= f.cols {
		return 0
	}
	return f.values[c.X*f.cols+c.Y]
}

// Mean averages fertility over a footprint.
func (f *Fertility) Mean(origin grid.Cell, fp grid.Footprint) float64 {
	cells := fp.Cells(origin)
	if len(cells) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range cells {
		total += f.At(c)
	}
	return total / float64(len(cells))
}
