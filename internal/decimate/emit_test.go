package decimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	s, err := Load([]Point{{5, 5}, {0, 0.01}, {0, 0}})
	require.NoError(t, err)

	out, err := Emit(s, []int{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []Labeled{
		{Index: 0, Point: Point{5, 5}, Zoom: 1},
		{Index: 1, Point: Point{0, 0.01}, Zoom: 0},
		{Index: 2, Point: Point{0, 0}, Zoom: 1},
	}, out)
}

func TestEmit_LengthMismatch(t *testing.T) {
	s, err := Load([]Point{{0, 0}})
	require.NoError(t, err)

	_, err = Emit(s, []int{1, 2})
	assert.Error(t, err)
}

func TestVisible(t *testing.T) {
	tests := []struct {
		label, zoom, max int
		want             bool
	}{
		{1, 1, 4, true},
		{2, 1, 4, false},
		{2, 3, 4, true},
		{0, 4, 4, false},
		{0, 5, 4, true},
		{0, 1, 0, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Visible(tt.label, tt.zoom, tt.max), "label %d zoom %d", tt.label, tt.zoom)
	}
}
