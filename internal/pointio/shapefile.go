package pointio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoomtier/internal/decimate"
)

// maxFieldName is the dBASE limit on attribute names.
const maxFieldName = 10

// ReadShapefile reads a point shapefile. Attributes become columns and the
// point coordinates fill cols.X and cols.Y, appended when no attribute of
// that name exists. Null shapes are skipped.
func ReadShapefile(path string, cols Columns) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	t := &Table{Header: make([]string, len(fields))}
	for i, f := range fields {
		t.Header[i] = strings.TrimRight(f.String(), "\x00")
	}
	xi, yi := t.Index(cols.X), t.Index(cols.Y)
	if xi < 0 {
		xi = len(t.Header)
		t.Header = append(t.Header, cols.X)
	}
	if yi < 0 {
		yi = len(t.Header)
		t.Header = append(t.Header, cols.Y)
	}

	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		var p *shp.Point
		switch s := shape.(type) {
		case *shp.Point:
			p = s
		case *shp.PointZ:
			p = &shp.Point{X: s.X, Y: s.Y}
		case *shp.PointM:
			p = &shp.Point{X: s.X, Y: s.Y}
		case *shp.Null, nil:
			skipped++
			continue
		default:
			return nil, eris.Errorf("shapefile: record %d is %T, want a point", n, shape)
		}

		row := make([]string, len(t.Header))
		for i := range fields {
			row[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		row[xi] = formatCoord(p.X)
		row[yi] = formatCoord(p.Y)
		t.Rows = append(t.Rows, row)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: skipped null shapes", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return t, nil
}

// WriteShapefile writes t as a point shapefile (.shp, .shx, .dbf). The
// coordinate columns become the geometry; labelColumn is stored as a number
// and every other column as text. Attribute names are cut to ten characters.
func WriteShapefile(path string, t *Table, cols Columns, labelColumn string) error {
	xi, yi := t.Index(cols.X), t.Index(cols.Y)
	if xi < 0 || yi < 0 {
		return eris.Errorf("shapefile: coordinate columns %q/%q not found", cols.X, cols.Y)
	}
	li := -1
	if labelColumn != "" {
		li = t.Index(labelColumn)
	}

	var attrCols []int
	var fields []shp.Field
	used := make(map[string]bool)
	for c, h := range t.Header {
		if c == xi || c == yi {
			continue
		}
		name := fieldName(h, used)
		if c == li {
			fields = append(fields, shp.NumberField(name, 10))
		} else {
			fields = append(fields, shp.StringField(name, columnWidth(t, c)))
		}
		attrCols = append(attrCols, c)
	}

	pts, err := t.Points(cols)
	if err != nil {
		return eris.Wrap(err, "shapefile: coordinates")
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "shapefile: create %s", path)
	}
	err = writeShapes(w, t, pts, fields, attrCols, li)
	w.Close()
	if err != nil {
		return err
	}
	return fixDBFName(path)
}

// fixDBFName moves the attribute table go-shp writes as "<base>dbf" to
// "<base>.dbf" so readers find it next to the .shp and .shx.
func fixDBFName(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	stray := base + "dbf"
	if _, err := os.Stat(stray); err != nil {
		return nil
	}
	if err := os.Rename(stray, base+".dbf"); err != nil {
		return eris.Wrapf(err, "shapefile: rename %s", stray)
	}
	return nil
}

func writeShapes(w *shp.Writer, t *Table, pts []decimate.Point, fields []shp.Field, attrCols []int, li int) error {
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "shapefile: set fields")
	}
	for r, p := range pts {
		n := int(w.Write(&shp.Point{X: p.X, Y: p.Y}))
		for f, c := range attrCols {
			var v any = t.Cell(r, c)
			if c == li {
				iv, err := strconv.Atoi(t.Cell(r, c))
				if err != nil {
					return eris.Wrapf(err, "shapefile: row %d label", r)
				}
				v = iv
			}
			if err := w.WriteAttribute(n, f, v); err != nil {
				return eris.Wrapf(err, "shapefile: row %d field %d", r, f)
			}
		}
	}
	return nil
}

func fieldName(h string, used map[string]bool) string {
	name := strings.TrimSpace(h)
	if name == "" {
		name = "field"
	}
	if len(name) > maxFieldName {
		name = name[:maxFieldName]
	}
	base := name
	for i := 1; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		name = base[:min(len(base), maxFieldName-len(suffix))] + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func columnWidth(t *Table, c int) uint8 {
	width := 1
	for r := range t.Rows {
		width = max(width, len(t.Cell(r, c)))
	}
	return uint8(min(width, 254))
}
