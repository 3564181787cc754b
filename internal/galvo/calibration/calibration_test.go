package calibration

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meerk40t/galvo/internal/galvoerr"
)

// affineTable builds a synthetic .cor file for a purely affine mapping
// galvo = 0x8000 + mm*1000, which a thin-plate spline (radial part plus
// affine term) should reproduce exactly at the sample points.
func affineTable(t *testing.T) (string, map[[2]float64][2]uint16) {
	t.Helper()
	var sb strings.Builder
	want := make(map[[2]float64][2]uint16)
	for _, mmX := range []float64{-2, -1, 0, 1, 2} {
		for _, mmY := range []float64{-2, -1, 0, 1, 2} {
			gx := uint16(0x8000 + int(mmX*1000))
			gy := uint16(0x8000 + int(mmY*1000))
			fmt.Fprintf(&sb, "%v %v 0 0 %X %X\n", mmX, mmY, gx, gy)
			want[[2]float64{mmX, mmY}] = [2]uint16{gx, gy}
		}
	}
	return sb.String(), want
}

func TestLoadFitsTablePointsExactly(t *testing.T) {
	content, want := affineTable(t)
	cal, err := Load(strings.NewReader(content), 0)
	require.NoError(t, err)
	require.True(t, cal.Enabled())

	for pt, galvo := range want {
		gx, gy, err := cal.Interpolate(pt[0], pt[1])
		require.NoError(t, err)
		assert.InDelta(t, int(galvo[0]), int(gx), 2, "x at %v", pt)
		assert.InDelta(t, int(galvo[1]), int(gy), 2, "y at %v", pt)
	}
}

func TestBoundsFromFirstLastRows(t *testing.T) {
	content, _ := affineTable(t)
	cal, err := Load(strings.NewReader(content), 0)
	require.NoError(t, err)
	xmin, xmax, ymin, ymax := cal.Bounds()
	assert.Equal(t, -2.0, xmin)
	assert.Equal(t, 2.0, xmax)
	assert.Equal(t, -2.0, ymin)
	assert.Equal(t, 2.0, ymax)
}

func TestInterpolateOutOfEnvelope(t *testing.T) {
	content, _ := affineTable(t)
	cal, err := Load(strings.NewReader(content), 0)
	require.NoError(t, err)
	_, _, err = cal.Interpolate(100, 100)
	assert.ErrorIs(t, err, galvoerr.ErrOutOfEnvelope)
}

func TestDisabledIsIdentityPassthrough(t *testing.T) {
	cal := Disabled()
	assert.False(t, cal.Enabled())
	x, y, err := cal.Interpolate(100.4, 200.6)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), x)
	assert.Equal(t, uint16(201), y)
}

func TestLoadRejectsMalformedRow(t *testing.T) {
	_, err := Load(strings.NewReader("1 2 3\n"), 0)
	assert.ErrorIs(t, err, galvoerr.ErrDataValidity)
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	_, err := Load(strings.NewReader(""), 0)
	assert.ErrorIs(t, err, galvoerr.ErrDataValidity)
}

func TestCacheHitReturnsSameResult(t *testing.T) {
	content, _ := affineTable(t)
	cal, err := Load(strings.NewReader(content), 4)
	require.NoError(t, err)

	x1, y1, err := cal.Interpolate(0.5, 0.5)
	require.NoError(t, err)
	x2, y2, err := cal.Interpolate(0.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2)
	c.put(cacheKey{x: 1}, cacheValue{x: 1})
	c.put(cacheKey{x: 2}, cacheValue{x: 2})
	c.put(cacheKey{x: 3}, cacheValue{x: 3})

	_, ok := c.get(cacheKey{x: 1})
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.get(cacheKey{x: 3})
	assert.True(t, ok)
}
