// Package store persists zoom-labeled layers in SQLite or PostGIS.
package store

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoomtier/internal/model"
)

// ErrNotFound is returned when a layer does not exist.
var ErrNotFound = eris.New("store: layer not found")

// BBox is an axis-aligned bounding box in layer coordinates.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether (x, y) lies inside b, edges included.
func (b *BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// ParseBBox parses "minx,miny,maxx,maxy".
func ParseBBox(s string) (*BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, eris.Errorf("store: bbox %q: want minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, eris.Errorf("store: bbox %q: bad number %q", s, p)
		}
		v[i] = f
	}
	b := &BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return nil, eris.Errorf("store: bbox %q: min exceeds max", s)
	}
	return b, nil
}

// Store defines persistence for labeled layers.
type Store interface {
	// SaveLayer replaces any layer of the same name with layer and points.
	SaveLayer(ctx context.Context, layer *model.Layer, points []model.LayerPoint) error
	GetLayer(ctx context.Context, name string) (*model.Layer, error)
	ListLayers(ctx context.Context) ([]model.Layer, error)
	// QueryPoints returns the points of a layer drawn at zoom, optionally
	// clipped to bbox, ordered by seq.
	QueryPoints(ctx context.Context, name string, zoom int, bbox *BBox) ([]model.LayerPoint, error)
	DeleteLayer(ctx context.Context, name string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
