package grid

import (
	"fmt"
	"math"

	"github.com/talgya/homestead/internal/invariant"
)

// Grid holds the occupancy map for a rows×columns build area.
type Grid struct {
	rows     int
	columns  int
	cellSize float64
	origin   Vec3

	// Row-major occupancy: index = x*columns + y.
	occupied []bool
}

// New creates an empty grid. Non-positive dimensions yield a grid with no
// valid cells; a non-positive cell size falls back to 1.
func New(rows, columns int, cellSize float64, origin Vec3) *Grid {
	if rows < 0 {
		rows = 0
	}
	if columns < 0 {
		columns = 0
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		rows:     rows,
		columns:  columns,
		cellSize: cellSize,
		origin:   origin,
		occupied: make([]bool, rows*columns),
	}
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Columns returns the number of columns.
func (g *Grid) Columns() int { return g.columns }

// CellSize returns the world-space edge length of one cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// WorldToCell maps a world position to the nearest cell, relative to the
// grid origin. Halfway values round to even.
func (g *Grid) WorldToCell(pos Vec3) Cell {
	x := math.RoundToEven((pos.X - g.origin.X) / g.cellSize)
	z := math.RoundToEven((pos.Z - g.origin.Z) / g.cellSize)
	return Cell{X: int(x), Y: int(z)}
}

// NearestPoint snaps a world position onto the grid. The result lies on the
// grid plane (origin height).
func (g *Grid) NearestPoint(pos Vec3) Vec3 {
	return g.CellToWorld(g.WorldToCell(pos))
}

// CellToWorld returns the world position of a cell's anchor point.
func (g *Grid) CellToWorld(c Cell) Vec3 {
	return Vec3{
		X: g.origin.X + float64(c.X)*g.cellSize,
		Y: g.origin.Y,
		Z: g.origin.Z + float64(c.Y)*g.cellSize,
	}
}

// IsValidCell reports whether the cell lies inside the grid bounds.
func (g *Grid) IsValidCell(c Cell) bool {
	return c.X >= 0 && c.X < g.rows && c.Y >= 0 && c.Y < g.columns
}

// IsOccupied reports whether a committed footprint covers the cell.
// Out-of-bounds cells are never occupied.
func (g *Grid) IsOccupied(c Cell) bool {
	if !g.IsValidCell(c) {
		return false
	}
	return g.occupied[g.index(c)]
}

// Reserve marks every footprint cell occupied. The caller must already have
// validated bounds and non-overlap; violations are reported and the bad
// cells skipped.
func (g *Grid) Reserve(origin Cell, fp Footprint) {
	for _, c := range fp.Cells(origin) {
		if !g.IsValidCell(c) {
			invariant.Violated("reserve outside grid", "cell", c)
			continue
		}
		i := g.index(c)
		if g.occupied[i] {
			invariant.Violated("reserve of occupied cell", "cell", c)
			continue
		}
		g.occupied[i] = true
	}
}

// Release frees every footprint cell. Releasing a free or out-of-bounds cell
// is a contract violation and is skipped.
func (g *Grid) Release(origin Cell, fp Footprint) {
	for _, c := range fp.Cells(origin) {
		if !g.IsValidCell(c) {
			invariant.Violated("release outside grid", "cell", c)
			continue
		}
		i := g.index(c)
		if !g.occupied[i] {
			invariant.Violated("release of free cell", "cell", c)
			continue
		}
		g.occupied[i] = false
	}
}

// Clear frees every cell.
func (g *Grid) Clear() { clear(g.occupied) }

// OccupiedCount returns the number of occupied cells.
func (g *Grid) OccupiedCount() int {
	n := 0
	for _, o := range g.occupied {
		if o {
			n++
		}
	}
	return n
}

// Bitmap packs the occupancy map into bytes, LSB-first, row-major.
func (g *Grid) Bitmap() []byte {
	out := make([]byte, (len(g.occupied)+7)/8)
	for i, o := range g.occupied {
		if o {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// LoadBitmap replaces the occupancy map with a bitmap produced by Bitmap on
// a grid of the same dimensions.
func (g *Grid) LoadBitmap(b []byte) error {
	want := (len(g.occupied) + 7) / 8
	if len(b) != want {
		return fmt.Errorf("grid bitmap: got %d bytes, want %d for %dx%d", len(b), want, g.rows, g.columns)
	}
	for i := range g.occupied {
		g.occupied[i] = b[i/8]&(1<<(i%8)) != 0
	}
	return nil
}

func (g *Grid) index(c Cell) int {
	return c.X*g.columns + c.Y
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cell=%.1f, occupied=%d)", g.rows, g.columns, g.cellSize, g.OccupiedCount())
}
