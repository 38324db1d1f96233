package pointio

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads one sheet of an XLSX workbook; the first row is the header.
// An empty sheet name selects the first sheet.
func ReadXLSX(path, sheetName string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: sheet %q is empty", sheet.Name)
	}

	t := &Table{Header: rowToStrings(sheet.Rows[0])}
	for _, row := range sheet.Rows[1:] {
		t.Rows = append(t.Rows, rowToStrings(row))
	}
	return t, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// WriteXLSX saves t as a single-sheet workbook. Cells of labelColumn are
// stored as integers.
func WriteXLSX(path string, t *Table, labelColumn string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("points")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	li := -1
	if labelColumn != "" {
		li = t.Index(labelColumn)
	}

	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}
	for _, row := range t.Rows {
		xr := sheet.AddRow()
		for j, v := range row {
			cell := xr.AddCell()
			if j == li {
				if n, err := strconv.Atoi(v); err == nil {
					cell.SetInt(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}
