package decimate

import "fmt"

// IndexKind selects how a tier pass finds neighbors of an anchor.
type IndexKind int

const (
	// IndexGrid buckets candidates into radius-sized cells. Falls back to
	// IndexBrute when coordinates cannot be bucketed exactly.
	IndexGrid IndexKind = iota
	// IndexBrute compares each anchor against every later point.
	IndexBrute
)

func (k IndexKind) String() string {
	switch k {
	case IndexGrid:
		return "grid"
	case IndexBrute:
		return "brute"
	default:
		return fmt.Sprintf("IndexKind(%d)", int(k))
	}
}

// pointState tracks a point through one tier pass. Transitions only move
// forward: unvisited -> anchor, or unvisited -> suppressed.
type pointState uint8

const (
	stateInactive pointState = iota
	stateUnvisited
	stateAnchor
	stateSuppressed
)

// Decimate runs one greedy suppression pass over points in processing order.
// Starting from aliveIn, each surviving point suppresses every later
// surviving point within radius (inclusive). It returns the kept mask and
// never modifies its arguments.
func Decimate(ordered []Point, aliveIn []bool, radius float64) []bool {
	return decimate(ordered, aliveIn, nil, radius, IndexGrid)
}

// decimate is Decimate with an optional set of obstacle points. Obstacles
// are already visible: before the greedy pass they suppress every alive
// point within radius, regardless of order. Obstacles and alive points must
// be disjoint.
func decimate(ordered []Point, aliveIn, obstacles []bool, radius float64, index IndexKind) []bool {
	if len(aliveIn) != len(ordered) {
		panic(fmt.Sprintf("decimate: mask length %d does not match %d points", len(aliveIn), len(ordered)))
	}
	if obstacles != nil && len(obstacles) != len(ordered) {
		panic(fmt.Sprintf("decimate: obstacle length %d does not match %d points", len(obstacles), len(ordered)))
	}

	state := make([]pointState, len(ordered))
	for i, alive := range aliveIn {
		if alive {
			state[i] = stateUnvisited
		}
	}

	var g *grid
	if index == IndexGrid {
		var ok bool
		g, ok = newGrid(ordered, aliveIn, radius)
		if ok && obstacles != nil {
			for i, o := range obstacles {
				if o && !g.addressable(ordered[i]) {
					ok = false
					break
				}
			}
		}
		if !ok {
			g = nil
		}
	}

	r2 := radius * radius
	suppress := func(i int) func(j int) {
		return func(j int) {
			if state[j] == stateUnvisited && within(ordered[i], ordered[j], r2) {
				state[j] = stateSuppressed
			}
		}
	}

	for i, o := range obstacles {
		if !o {
			continue
		}
		if g != nil {
			g.each(ordered[i], -1, suppress(i))
			continue
		}
		fn := suppress(i)
		for j := range ordered {
			fn(j)
		}
	}

	for i := range ordered {
		if state[i] != stateUnvisited {
			continue
		}
		state[i] = stateAnchor
		if g != nil {
			g.each(ordered[i], i, suppress(i))
			continue
		}
		fn := suppress(i)
		for j := i + 1; j < len(ordered); j++ {
			fn(j)
		}
	}

	kept := make([]bool, len(ordered))
	for i, s := range state {
		kept[i] = s == stateAnchor
	}
	return kept
}

// within reports whether a and b are at most sqrt(r2) apart.
func within(a, b Point, r2 float64) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx+dy*dy <= r2
}
