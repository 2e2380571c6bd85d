package gridding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rupture.report/internal/finder"
)

func spec(n int) finder.GridSpec {
	return finder.GridSpec{
		MinLat: 34, MaxLat: 35,
		MinLon: -118, MaxLon: -117,
		NLat: n, NLon: n,
		Tension: 0,
		Border:  -4,
	}
}

func TestInterpolateEmptyFillsBorder(t *testing.T) {
	t.Parallel()

	g, err := New().Interpolate(nil, spec(5))
	require.NoError(t, err)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			assert.Equal(t, -4.0, g.At(r, c))
		}
	}
}

func TestInterpolateHonorsSamplePoints(t *testing.T) {
	t.Parallel()

	// Samples placed exactly on grid nodes of an 11x11 raster.
	points := []finder.ScatterPoint{
		{Lat: 35.0, Lon: -118.0, Value: 2.0},
		{Lat: 34.0, Lon: -117.0, Value: -1.0},
	}
	g, err := New().Interpolate(points, spec(11))
	require.NoError(t, err)

	// Row 0 is the northern edge.
	assert.Equal(t, 2.0, g.At(0, 0))
	assert.Equal(t, -1.0, g.At(10, 10))
}

func TestInterpolateStaysWithinSampleRange(t *testing.T) {
	t.Parallel()

	points := []finder.ScatterPoint{
		{Lat: 34.8, Lon: -117.8, Value: 3.0},
		{Lat: 34.2, Lon: -117.3, Value: 1.0},
		{Lat: 34.5, Lon: -117.5, Value: 2.0},
	}
	g, err := New().Interpolate(points, spec(9))
	require.NoError(t, err)

	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			v := g.At(r, c)
			assert.GreaterOrEqual(t, v, 1.0)
			assert.LessOrEqual(t, v, 3.0)
		}
	}
}

func TestInterpolateTensionPullsTowardMean(t *testing.T) {
	t.Parallel()

	points := []finder.ScatterPoint{
		{Lat: 35.0, Lon: -118.0, Value: 4.0},
		{Lat: 34.0, Lon: -117.0, Value: 0.0},
	}

	loose := spec(11)
	tight := spec(11)
	tight.Tension = 0.9

	g0, err := New().Interpolate(points, loose)
	require.NoError(t, err)
	g1, err := New().Interpolate(points, tight)
	require.NoError(t, err)

	// A cell near the high sample sits closer to the mean (2.0) under
	// high tension.
	assert.Greater(t, g0.At(1, 1), g1.At(1, 1))
	assert.Greater(t, g1.At(1, 1), 2.0)
}
