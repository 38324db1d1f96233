// Package model defines the layer records shared by the store, batch runner and server.
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/zoomtier/internal/decimate"
)

// Layer describes one stored, zoom-labeled point layer.
type Layer struct {
	Name       string          `json:"name"`
	RunID      uuid.UUID       `json:"run_id"`
	Tiers      []decimate.Tier `json:"tiers"`
	MaxZoom    int             `json:"max_zoom"`
	Carry      string          `json:"carry"`
	PointCount int             `json:"point_count"`
	Counts     map[int]int     `json:"counts"` // points per label, 0 = unassigned
	Source     string          `json:"source,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Unassigned returns the number of points no tier claimed.
func (l *Layer) Unassigned() int { return l.Counts[0] }

// Zooms returns the labels present in the layer, ascending, excluding 0.
func (l *Layer) Zooms() []int {
	var zs []int
	for z, n := range l.Counts {
		if z != 0 && n > 0 {
			zs = append(zs, z)
		}
	}
	slices.Sort(zs)
	return zs
}

// LayerPoint is one labeled point of a layer. Seq is the input row index.
type LayerPoint struct {
	Seq        int               `json:"seq"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Zoom       int               `json:"zoom"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Visible reports whether the point is drawn at zoom on a layer whose finest
// tier is maxZoom.
func (p LayerPoint) Visible(zoom, maxZoom int) bool {
	return decimate.Visible(p.Zoom, zoom, maxZoom)
}

// NewLayer returns layer metadata for a finished assignment.
func NewLayer(name, source, carry string, tiers []decimate.Tier, res *decimate.Result) *Layer {
	return &Layer{
		Name:       name,
		RunID:      uuid.New(),
		Tiers:      slices.Clone(tiers),
		MaxZoom:    res.MaxZoom,
		Carry:      carry,
		PointCount: len(res.Labels),
		Counts:     res.Counts(),
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}
}
