package pointio

import (
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ReadGeoJSON reads a FeatureCollection of Point features. Property names
// become columns in first-seen order, sorted within a feature, and the point coordinates fill cols.X
// and cols.Y.
func ReadGeoJSON(r io.Reader, cols Columns) (*Table, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geojson: decode")
	}

	t := &Table{}
	index := make(map[string]int)
	column := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(t.Header)
		t.Header = append(t.Header, name)
		return index[name]
	}
	xi, yi := column(cols.X), column(cols.Y)

	for n, f := range fc.Features {
		p, ok := f.Geometry.(*geom.Point)
		if !ok {
			return nil, eris.Errorf("geojson: feature %d has geometry %T, want a point", n, f.Geometry)
		}
		cells := map[int]string{xi: formatCoord(p.X()), yi: formatCoord(p.Y())}
		for _, k := range slices.Sorted(maps.Keys(f.Properties)) {
			if k == cols.X || k == cols.Y {
				continue
			}
			cells[column(k)] = propertyString(f.Properties[k])
		}
		row := make([]string, len(t.Header))
		for i, v := range cells {
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	// Columns first seen in later features widen earlier rows.
	for r, row := range t.Rows {
		if len(row) < len(t.Header) {
			t.Rows[r] = append(row, make([]string, len(t.Header)-len(row))...)
		}
	}
	return t, nil
}

func propertyString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// WriteGeoJSON writes t as a FeatureCollection of points. labelColumn is
// written as a number; other non-coordinate columns as strings.
func WriteGeoJSON(w io.Writer, t *Table, cols Columns, labelColumn string) error {
	fc, err := FeatureCollection(t, cols, labelColumn)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "geojson: encode")
	}
	return nil
}

// FeatureCollection converts t into point features.
func FeatureCollection(t *Table, cols Columns, labelColumn string) (*geojson.FeatureCollection, error) {
	pts, err := t.Points(cols)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: coordinates")
	}
	xi, yi := t.Index(cols.X), t.Index(cols.Y)
	li := -1
	if labelColumn != "" {
		li = t.Index(labelColumn)
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, len(pts))}
	for r, p := range pts {
		props := make(map[string]any, len(t.Header))
		for c, h := range t.Header {
			if c == xi || c == yi {
				continue
			}
			v := t.Cell(r, c)
			if c == li {
				if n, err := strconv.Atoi(v); err == nil {
					props[h] = n
					continue
				}
			}
			props[h] = v
		}
		fc.Features[r] = &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}),
			Properties: props,
		}
	}
	return fc, nil
}
