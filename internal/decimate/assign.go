package decimate

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// CarryPolicy decides how points labeled at a coarse tier take part in finer tiers.
type CarryPolicy int

const (
	// CarryRelease drops labeled points from later passes entirely; each finer
	// tier thins only the points that are still unlabeled.
	CarryRelease CarryPolicy = iota
	// CarryRetain keeps labeled points as obstacles: at each finer tier they
	// suppress unlabeled neighbors within the tier radius before the greedy
	// pass runs over the rest.
	CarryRetain
)

func (p CarryPolicy) String() string {
	switch p {
	case CarryRelease:
		return "release"
	case CarryRetain:
		return "retain"
	default:
		return fmt.Sprintf("CarryPolicy(%d)", int(p))
	}
}

// ParseCarryPolicy maps "release" or "retain" to a CarryPolicy. Empty means release.
func ParseCarryPolicy(s string) (CarryPolicy, error) {
	switch s {
	case "", "release":
		return CarryRelease, nil
	case "retain":
		return CarryRetain, nil
	default:
		return 0, fmt.Errorf("decimate: unknown carry policy %q", s)
	}
}

// ParseIndexKind maps "grid" or "brute" to an IndexKind. Empty means grid.
func ParseIndexKind(s string) (IndexKind, error) {
	switch s {
	case "", "grid":
		return IndexGrid, nil
	case "brute":
		return IndexBrute, nil
	default:
		return 0, fmt.Errorf("decimate: unknown index %q", s)
	}
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithCarry sets the carry policy. The default is CarryRelease.
func WithCarry(p CarryPolicy) Option {
	return func(a *Assigner) { a.carry = p }
}

// WithIndex sets the neighbor search strategy. The default is IndexGrid.
func WithIndex(k IndexKind) Option {
	return func(a *Assigner) { a.index = k }
}

// WithLogger sets the logger used for per-tier progress. The default is zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Assigner) { a.log = l }
}

// TierStats summarizes one tier pass.
type TierStats struct {
	Zoom       int           `json:"zoom"`
	Radius     float64       `json:"radius"`
	Candidates int           `json:"candidates"`
	Labeled    int           `json:"labeled"`
	Remaining  int           `json:"remaining"`
	Duration   time.Duration `json:"duration"`
}

// Result holds the labels of one assignment run.
type Result struct {
	// Labels is aligned to input order; 0 means no tier claimed the point.
	Labels  []int       `json:"labels"`
	Tiers   []TierStats `json:"tiers"`
	MaxZoom int         `json:"max_zoom"`
}

// Counts returns the number of points per label, including 0.
func (r *Result) Counts() map[int]int {
	counts := make(map[int]int, len(r.Tiers)+1)
	for _, z := range r.Labels {
		counts[z]++
	}
	return counts
}

// Assigner runs the tier sequence over a point store.
type Assigner struct {
	tiers []Tier
	carry CarryPolicy
	index IndexKind
	log   *zap.Logger
}

// NewAssigner validates tiers and returns an Assigner over a copy of them.
func NewAssigner(tiers []Tier, opts ...Option) (*Assigner, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	a := &Assigner{tiers: slices.Clone(tiers)}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = zap.L()
	}
	if !radiiDecreasing(a.tiers) {
		a.log.Warn("decimate: tier radii do not shrink with zoom", zap.Stringers("tiers", a.tiers))
	}
	return a, nil
}

// Tiers returns a copy of the tier list.
func (a *Assigner) Tiers() []Tier { return slices.Clone(a.tiers) }

// Assign labels every point of s with the zoom of the first tier that keeps
// it. Labels are write-once: a point labeled at a coarse tier is never
// relabeled by a finer one.
func (a *Assigner) Assign(s *Store) *Result {
	order := s.SortedOrder()
	ordered := s.Ordered()
	n := len(ordered)

	// labels and carry are indexed in processing order.
	labels := make([]int, n)
	carry := make([]bool, n)
	for k := range carry {
		carry[k] = true
	}

	res := &Result{MaxZoom: MaxZoom(a.tiers)}
	remaining := n
	for _, t := range a.tiers {
		start := time.Now()

		candidates := 0
		for _, c := range carry {
			if c {
				candidates++
			}
		}

		var obstacles []bool
		if a.carry == CarryRetain && remaining < n {
			obstacles = make([]bool, n)
			for k, z := range labels {
				obstacles[k] = z != 0
			}
		}

		kept := decimate(ordered, carry, obstacles, t.Radius, a.index)

		labeled := 0
		for k, keep := range kept {
			if keep && labels[k] == 0 {
				labels[k] = t.Zoom
				labeled++
			}
		}
		remaining -= labeled
		for k := range carry {
			carry[k] = labels[k] == 0
		}

		ts := TierStats{
			Zoom:       t.Zoom,
			Radius:     t.Radius,
			Candidates: candidates,
			Labeled:    labeled,
			Remaining:  remaining,
			Duration:   time.Since(start),
		}
		res.Tiers = append(res.Tiers, ts)
		a.log.Debug("decimate: tier complete",
			zap.Int("zoom", ts.Zoom),
			zap.Float64("radius", ts.Radius),
			zap.Int("candidates", ts.Candidates),
			zap.Int("labeled", ts.Labeled),
			zap.Int("remaining", ts.Remaining),
			zap.Duration("duration", ts.Duration),
		)
	}

	res.Labels = make([]int, n)
	for k, idx := range order {
		res.Labels[idx] = labels[k]
	}
	return res
}

// AssignZoomLabels loads points, runs tiers with default options and returns
// labels aligned to the input order.
func AssignZoomLabels(points []Point, tiers []Tier) ([]int, error) {
	a, err := NewAssigner(tiers)
	if err != nil {
		return nil, err
	}
	s, err := Load(points)
	if err != nil {
		return nil, err
	}
	return a.Assign(s).Labels, nil
}
