package pointio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoomtier/internal/decimate"
)

var lonLat = Columns{X: "lon", Y: "lat"}

func TestTable_Points(t *testing.T) {
	tbl := &Table{
		Header: []string{"name", " LON ", "lat"},
		Rows: [][]string{
			{"a", "-97.5", "35.1"},
			{"b", " 1e-3 ", "0"},
		},
	}
	pts, err := tbl.Points(lonLat)
	require.NoError(t, err)
	assert.Equal(t, []decimate.Point{{X: -97.5, Y: 35.1}, {X: 0.001, Y: 0}}, pts)
}

func TestTable_PointsMissingColumn(t *testing.T) {
	tbl := &Table{Header: []string{"lon"}, Rows: [][]string{{"1"}}}
	_, err := tbl.Points(lonLat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "lat" not found`)
}

func TestTable_PointsInvalidCell(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"blank", []string{"1", ""}},
		{"text", []string{"east", "2"}},
		{"nan", []string{"NaN", "2"}},
		{"inf", []string{"1", "+Inf"}},
		{"short row", []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := &Table{Header: []string{"lon", "lat"}, Rows: [][]string{{"0", "0"}, tt.row}}
			_, err := tbl.Points(lonLat)
			var pe *decimate.InvalidPointError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, 1, pe.Index)
		})
	}
}

func TestTable_WithLabelsAppends(t *testing.T) {
	tbl := &Table{Header: []string{"lon", "lat"}, Rows: [][]string{{"0", "0"}, {"1", "1"}}}
	out, err := tbl.WithLabels("zoom", []int{1, 0})
	require.NoError(t, err)

	assert.Equal(t, []string{"lon", "lat", "zoom"}, out.Header)
	assert.Equal(t, [][]string{{"0", "0", "1"}, {"1", "1", "0"}}, out.Rows)
	assert.Equal(t, []string{"lon", "lat"}, tbl.Header, "input unchanged")
}

func TestTable_WithLabelsReplaces(t *testing.T) {
	tbl := &Table{Header: []string{"zoom", "lon", "lat"}, Rows: [][]string{{"9", "0", "0"}, {"9"}}}
	out, err := tbl.WithLabels("ZOOM", []int{2, 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"zoom", "lon", "lat"}, out.Header)
	assert.Equal(t, [][]string{{"2", "0", "0"}, {"3", "", ""}}, out.Rows)
	assert.Equal(t, "9", tbl.Rows[0][0])
}

func TestTable_WithLabelsMismatch(t *testing.T) {
	tbl := &Table{Header: []string{"lon", "lat"}, Rows: [][]string{{"0", "0"}}}
	_, err := tbl.WithLabels("zoom", []int{1, 2})
	assert.Error(t, err)
}

func TestFromPoints(t *testing.T) {
	tbl := FromPoints(lonLat, []decimate.Point{{X: 1.5, Y: -2}})
	assert.Equal(t, []string{"lon", "lat"}, tbl.Header)
	assert.Equal(t, [][]string{{"1.5", "-2"}}, tbl.Rows)
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_LayerPoints(t *testing.T) {
	tbl := &Table{
		Header: []string{"api", "lon", "lat", "operator"},
		Rows:   [][]string{{"001", "1", "2", "Acme"}, {"002", "3", "4", ""}},
	}
	pts, err := tbl.LayerPoints(lonLat, []int{1, 0})
	require.NoError(t, err)
	require.Len(t, pts, 2)

	assert.Equal(t, 0, pts[0].Seq)
	assert.Equal(t, 1.0, pts[0].X)
	assert.Equal(t, 2.0, pts[0].Y)
	assert.Equal(t, 1, pts[0].Zoom)
	assert.Equal(t, map[string]string{"api": "001", "operator": "Acme"}, pts[0].Properties)
	assert.Equal(t, map[string]string{"api": "002"}, pts[1].Properties)

	_, err = tbl.LayerPoints(lonLat, []int{1})
	assert.Error(t, err)
}
