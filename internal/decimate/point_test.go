package decimate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		index  int
	}{
		{"NaN x", []Point{{0, 0}, {math.NaN(), 1}}, 1},
		{"NaN y", []Point{{0, math.NaN()}}, 0},
		{"+Inf", []Point{{0, 0}, {1, 1}, {math.Inf(1), 0}}, 2},
		{"-Inf", []Point{{0, math.Inf(-1)}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.points)
			require.Error(t, err)

			var pe *InvalidPointError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.index, pe.Index)
			assert.Contains(t, err.Error(), "coordinates must be finite")
		})
	}
}

func TestLoad_CopiesInput(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}}
	s, err := Load(pts)
	require.NoError(t, err)

	pts[0] = Point{9, 9}
	assert.Equal(t, Point{1, 2}, s.Get(0))
	assert.Equal(t, 2, s.Len())
}

func TestStore_SortedOrder(t *testing.T) {
	s, err := Load([]Point{{2, 0}, {1, 5}, {1, 2}, {2, 0}, {-1, 9}})
	require.NoError(t, err)

	// Exact ties at (2, 0) keep input order 0 before 3.
	assert.Equal(t, []int{4, 2, 1, 0, 3}, s.SortedOrder())
	assert.Equal(t, []Point{{-1, 9}, {1, 2}, {1, 5}, {2, 0}, {2, 0}}, s.Ordered())
}

func TestStore_SortedOrderIsCached(t *testing.T) {
	s, err := Load(randomPoints(4, 50, 1))
	require.NoError(t, err)

	first := s.SortedOrder()
	second := s.SortedOrder()
	assert.Same(t, &first[0], &second[0])
}

func TestStore_NegativeZeroTiesPositiveZero(t *testing.T) {
	s, err := Load([]Point{{0, 1}, {math.Copysign(0, -1), 0}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, s.SortedOrder())
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "1:0.16", Tier{Zoom: 1, Radius: 0.16}.String())
}

func TestMaxZoom(t *testing.T) {
	assert.Equal(t, 0, MaxZoom(nil))
	assert.Equal(t, 4, MaxZoom(DefaultTiers()))
}

func TestInvalidTierConfigError_WholeList(t *testing.T) {
	err := &InvalidTierConfigError{Index: -1, Reason: "empty"}
	assert.Equal(t, "decimate: invalid tier config: empty", err.Error())
}
