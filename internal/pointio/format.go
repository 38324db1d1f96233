package pointio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

// Format identifies a point file encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatTSV
	FormatXLSX
	FormatShapefile
	FormatGeoJSON
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatXLSX:
		return "xlsx"
	case FormatShapefile:
		return "shp"
	case FormatGeoJSON:
		return "geojson"
	default:
		return "unknown"
	}
}

// streamable formats can be wrapped in zstd.
func (f Format) streamable() bool {
	return f == FormatCSV || f == FormatTSV || f == FormatGeoJSON
}

// DetectFormat picks a format from the file extension. A trailing .zst
// marks zstd compression and is only allowed on csv, tsv and geojson.
func DetectFormat(path string) (Format, bool, error) {
	name := strings.ToLower(filepath.Base(path))
	compressed := false
	if trimmed, ok := strings.CutSuffix(name, ".zst"); ok {
		name = trimmed
		compressed = true
	}

	var f Format
	switch filepath.Ext(name) {
	case ".csv", ".txt":
		f = FormatCSV
	case ".tsv", ".tab":
		f = FormatTSV
	case ".xlsx":
		f = FormatXLSX
	case ".shp":
		f = FormatShapefile
	case ".geojson", ".json":
		f = FormatGeoJSON
	default:
		return FormatUnknown, false, eris.Errorf("pointio: unrecognized file extension %q", path)
	}
	if compressed && !f.streamable() {
		return FormatUnknown, false, eris.Errorf("pointio: %s files cannot be zstd compressed", f)
	}
	return f, compressed, nil
}

// Options controls reading and writing.
type Options struct {
	Columns     Columns
	Delimiter   rune   // CSV only; 0 picks ',' or '\t' from the format
	Encoding    string // CSV only; source charset label such as "windows-1252"
	Sheet       string // XLSX only; default is the first sheet
	LabelColumn string // column written as a number where the format has types
}

// Read loads the file at path into a Table.
func Read(ctx context.Context, path string, opts Options) (*Table, error) {
	f, compressed, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatXLSX:
		return ReadXLSX(path, opts.Sheet)
	case FormatShapefile:
		return ReadShapefile(path, opts.Columns)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pointio: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	var r io.Reader = file
	if compressed {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, eris.Wrap(err, "pointio: zstd reader")
		}
		defer dec.Close()
		r = dec
	}

	if f == FormatGeoJSON {
		return ReadGeoJSON(r, opts.Columns)
	}
	return ReadCSV(ctx, r, CSVOptions{Delimiter: delimiterFor(f, opts.Delimiter), Encoding: opts.Encoding})
}

// Write stores t at path in the format implied by its extension.
func Write(path string, t *Table, opts Options) (err error) {
	f, compressed, err := DetectFormat(path)
	if err != nil {
		return err
	}

	switch f {
	case FormatXLSX:
		return WriteXLSX(path, t, opts.LabelColumn)
	case FormatShapefile:
		return WriteShapefile(path, t, opts.Columns, opts.LabelColumn)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pointio: create %s", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "pointio: close %s", path)
		}
	}()

	var w io.Writer = file
	if compressed {
		enc, zerr := zstd.NewWriter(file)
		if zerr != nil {
			return eris.Wrap(zerr, "pointio: zstd writer")
		}
		defer func() {
			if cerr := enc.Close(); cerr != nil && err == nil {
				err = eris.Wrap(cerr, "pointio: zstd close")
			}
		}()
		w = enc
	}

	if f == FormatGeoJSON {
		return WriteGeoJSON(w, t, opts.Columns, opts.LabelColumn)
	}
	return WriteCSV(w, t, delimiterFor(f, opts.Delimiter))
}

func delimiterFor(f Format, d rune) rune {
	if d != 0 {
		return d
	}
	if f == FormatTSV {
		return '\t'
	}
	return ','
}
