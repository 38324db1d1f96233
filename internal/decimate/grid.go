package decimate

import (
	"math"
	"sort"
)

// maxCellCoord bounds cell coordinates so that float-to-int conversion of
// x/cellSize stays exact.
const maxCellCoord = 1 << 52

// reachSlack widens the candidate window so that no pair accepted by the
// squared-distance test is missed because of rounding in x/cellSize.
const reachSlack = 1e-9

type cellKey struct {
	cx, cy int64
}

// grid is a uniform fixed-radius index over a subset of ordered points.
// Cells hold processing-order indices in ascending order.
type grid struct {
	size  float64
	reach float64
	cells map[cellKey][]int
}

// newGrid indexes the points whose include flag is set. It returns false if
// any indexed point is too far from the origin, relative to size, to be
// bucketed exactly.
func newGrid(points []Point, include []bool, size float64) (*grid, bool) {
	g := &grid{
		size:  size,
		reach: size * (1 + reachSlack),
		cells: make(map[cellKey][]int),
	}
	for i, p := range points {
		if !include[i] {
			continue
		}
		if !g.addressable(p) {
			return nil, false
		}
		k := cellKey{g.coord(p.X), g.coord(p.Y)}
		g.cells[k] = append(g.cells[k], i)
	}
	return g, true
}

// addressable reports whether p and the window around it map to exact cells.
func (g *grid) addressable(p Point) bool {
	for _, v := range [...]float64{p.X - g.reach, p.X + g.reach, p.Y - g.reach, p.Y + g.reach} {
		c := math.Floor(v / g.size)
		if math.IsNaN(c) || c <= -maxCellCoord || c >= maxCellCoord {
			return false
		}
	}
	return true
}

func (g *grid) coord(v float64) int64 {
	return int64(math.Floor(v / g.size))
}

// each calls fn for every indexed point with processing index greater than
// after whose cell lies in the window around p. Pass -1 to visit all.
// p must be addressable.
func (g *grid) each(p Point, after int, fn func(j int)) {
	x0, x1 := g.coord(p.X-g.reach), g.coord(p.X+g.reach)
	y0, y1 := g.coord(p.Y-g.reach), g.coord(p.Y+g.reach)
	for cx := x0; cx <= x1; cx++ {
		for cy := y0; cy <= y1; cy++ {
			cell := g.cells[cellKey{cx, cy}]
			start := sort.SearchInts(cell, after+1)
			for _, j := range cell[start:] {
				fn(j)
			}
		}
	}
}
