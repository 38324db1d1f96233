package decimate

import (
	"fmt"
	"math"
)

// Tier pairs a zoom level with the exclusion radius used to thin points
// first shown at that zoom.
type Tier struct {
	Zoom   int     `json:"zoom" yaml:"zoom" mapstructure:"zoom"`
	Radius float64 `json:"radius" yaml:"radius" mapstructure:"radius"`
}

func (t Tier) String() string {
	return fmt.Sprintf("%d:%g", t.Zoom, t.Radius)
}

// DefaultTiers returns the tier table used for the national well layers.
// Radii are in the units of the input coordinates (degrees for lon/lat).
func DefaultTiers() []Tier {
	return []Tier{
		{Zoom: 1, Radius: 0.16},
		{Zoom: 2, Radius: 0.08},
		{Zoom: 3, Radius: 0.04},
		{Zoom: 4, Radius: 0.02},
	}
}

// ValidateTiers checks that zoom levels are at least 1 and strictly
// increasing and that every radius is positive and finite. Zoom 0 is
// reserved for unassigned points.
func ValidateTiers(tiers []Tier) error {
	for i, t := range tiers {
		if t.Zoom < 1 {
			return &InvalidTierConfigError{Index: i, Reason: fmt.Sprintf("zoom %d must be >= 1", t.Zoom)}
		}
		if i > 0 && t.Zoom <= tiers[i-1].Zoom {
			return &InvalidTierConfigError{Index: i, Reason: fmt.Sprintf("zoom %d does not increase over %d", t.Zoom, tiers[i-1].Zoom)}
		}
		if math.IsNaN(t.Radius) || math.IsInf(t.Radius, 0) || t.Radius <= 0 {
			return &InvalidTierConfigError{Index: i, Reason: fmt.Sprintf("radius %v must be positive and finite", t.Radius)}
		}
	}
	return nil
}

// MaxZoom returns the zoom of the finest tier, or 0 for an empty list.
func MaxZoom(tiers []Tier) int {
	if len(tiers) == 0 {
		return 0
	}
	return tiers[len(tiers)-1].Zoom
}

// radiiDecreasing reports whether radii shrink strictly as zoom increases.
func radiiDecreasing(tiers []Tier) bool {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Radius >= tiers[i-1].Radius {
			return false
		}
	}
	return true
}
