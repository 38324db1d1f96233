// Package decimate assigns each point of a dense layer the coarsest map zoom
// at which it should first be drawn.
//
// Points are thinned tier by tier with a greedy fixed-radius suppression
// pass run in a fixed lexicographic order, so the result is deterministic
// for a given input and tier list.
package decimate

import (
	"cmp"
	"math"
	"slices"
	"sync"
)

// Point is a planar coordinate pair. Distances between points are Euclidean.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Store holds an immutable point set and its cached processing order.
type Store struct {
	points []Point

	orderOnce sync.Once
	order     []int
}

// Load validates points and returns a Store over a private copy of them.
func Load(points []Point) (*Store, error) {
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return nil, &InvalidPointError{Index: i, X: p.X, Y: p.Y}
		}
	}
	return &Store{points: slices.Clone(points)}, nil
}

// Len returns the number of points.
func (s *Store) Len() int { return len(s.points) }

// Get returns the point at input index i.
func (s *Store) Get(i int) Point { return s.points[i] }

// SortedOrder returns input indices sorted by (x, y). Exact ties keep input
// order. The slice is shared; callers must not modify it.
func (s *Store) SortedOrder() []int {
	s.orderOnce.Do(func() {
		order := make([]int, len(s.points))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			pa, pb := s.points[a], s.points[b]
			if c := cmp.Compare(pa.X, pb.X); c != 0 {
				return c
			}
			return cmp.Compare(pa.Y, pb.Y)
		})
		s.order = order
	})
	return s.order
}

// Ordered returns the points laid out in processing order.
func (s *Store) Ordered() []Point {
	order := s.SortedOrder()
	out := make([]Point, len(order))
	for k, idx := range order {
		out[k] = s.points[idx]
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
