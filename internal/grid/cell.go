// Package grid provides the square build grid: world ↔ cell conversion and
// per-cell occupancy for committed building footprints.
package grid

import "fmt"

// Cell is a grid-space coordinate. X runs over rows, Y over columns.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the cell offset by (dx, dy).
func (c Cell) Add(dx, dy int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Vec3 is a world-space position. The grid lies in the X/Z plane.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Footprint is the width×height rectangle of cells a building covers,
// anchored at its origin cell.
type Footprint struct {
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Cells returns every cell of the footprint anchored at origin, row-major
// (x outer, y inner).
func (f Footprint) Cells(origin Cell) []Cell {
	if f.W <= 0 || f.H <= 0 {
		return nil
	}
	cells := make([]Cell, 0, f.W*f.H)
	for dx := 0; dx < f.W; dx++ {
		for dy := 0; dy < f.H; dy++ {
			cells = append(cells, origin.Add(dx, dy))
		}
	}
	return cells
}

// Area returns the number of cells covered.
func (f Footprint) Area() int {
	if f.W <= 0 || f.H <= 0 {
		return 0
	}
	return f.W * f.H
}
