// Package pointio reads and writes point layers as tables of string cells:
// CSV, TSV, XLSX, point shapefiles and GeoJSON, optionally zstd compressed.
package pointio

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoomtier/internal/decimate"
	"github.com/sells-group/zoomtier/internal/model"
)

// Columns names the coordinate columns of a table.
type Columns struct {
	X string
	Y string
}

// Table is a header plus rows of cells. Rows may be ragged; missing cells
// read as empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the named column, matched case-insensitively
// after trimming, or -1.
func (t *Table) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Cell returns row r, column c, or "" when the row is short.
func (t *Table) Cell(r, c int) string {
	if c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][c]
}

// Points parses the coordinate columns of every row. A blank or
// unparseable coordinate is reported as *decimate.InvalidPointError for
// that row.
func (t *Table) Points(cols Columns) ([]decimate.Point, error) {
	xi, yi := t.Index(cols.X), t.Index(cols.Y)
	if xi < 0 {
		return nil, eris.Errorf("pointio: column %q not found", cols.X)
	}
	if yi < 0 {
		return nil, eris.Errorf("pointio: column %q not found", cols.Y)
	}

	pts := make([]decimate.Point, len(t.Rows))
	for r := range t.Rows {
		x, xok := parseCoord(t.Cell(r, xi))
		y, yok := parseCoord(t.Cell(r, yi))
		if !xok || !yok {
			return nil, &decimate.InvalidPointError{Index: r, X: x, Y: y}
		}
		pts[r] = decimate.Point{X: x, Y: y}
	}
	return pts, nil
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, !math.IsNaN(v) && !math.IsInf(v, 0)
}

// WithLabels returns a copy of t with labels written to column, replacing
// an existing column of that name or appending a new one.
func (t *Table) WithLabels(column string, labels []int) (*Table, error) {
	if len(labels) != len(t.Rows) {
		return nil, eris.Errorf("pointio: %d labels for %d rows", len(labels), len(t.Rows))
	}

	out := &Table{Header: slices.Clone(t.Header), Rows: make([][]string, len(t.Rows))}
	ci := out.Index(column)
	if ci < 0 {
		ci = len(out.Header)
		out.Header = append(out.Header, column)
	}
	for r, row := range t.Rows {
		width := max(len(row), len(out.Header))
		nr := make([]string, width)
		copy(nr, row)
		nr[ci] = strconv.Itoa(labels[r])
		out.Rows[r] = nr
	}
	return out, nil
}

// LayerPoints pairs each row with its label. Non-coordinate cells become
// properties; empty cells are dropped.
func (t *Table) LayerPoints(cols Columns, labels []int) ([]model.LayerPoint, error) {
	pts, err := t.Points(cols)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(pts) {
		return nil, eris.Errorf("pointio: %d labels for %d rows", len(labels), len(pts))
	}

	xi, yi := t.Index(cols.X), t.Index(cols.Y)
	out := make([]model.LayerPoint, len(pts))
	for r, p := range pts {
		var props map[string]string
		for c, h := range t.Header {
			if c == xi || c == yi {
				continue
			}
			if v := t.Cell(r, c); v != "" {
				if props == nil {
					props = make(map[string]string, len(t.Header))
				}
				props[h] = v
			}
		}
		out[r] = model.LayerPoint{Seq: r, X: p.X, Y: p.Y, Zoom: labels[r], Properties: props}
	}
	return out, nil
}

// FromPoints builds a two-column table from bare points.
func FromPoints(cols Columns, points []decimate.Point) *Table {
	t := &Table{Header: []string{cols.X, cols.Y}, Rows: make([][]string, len(points))}
	for i, p := range points {
		t.Rows[i] = []string{formatCoord(p.X), formatCoord(p.Y)}
	}
	return t
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
