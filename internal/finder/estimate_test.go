package finder

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
)

func TestMagnitudeFromLengthRelations(t *testing.T) {
	t.Parallel()

	info := TemplateInfo{LengthKm: 20, Mag: 6.42}

	cases := []struct {
		name   string
		option int
		want   float64
	}{
		{"template intrinsic", config.MagFromTemplate, 6.42},
		{"length regression", config.MagWellsCoppersmith, 4.38 + 1.49*math.Log10(20)},
		{"alternate regression", config.MagBlaser, (math.Log10(20) + 2.44) / 0.59},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			params := testParams(t, func(c *config.Config) {
				c.MagOption = &tc.option
			})
			e := NewEstimator(params)
			got := e.MagnitudeFromLength(info, 20)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestTemplateMagnitudeIgnoresLength(t *testing.T) {
	t.Parallel()

	option := config.MagFromTemplate
	params := testParams(t, func(c *config.Config) { c.MagOption = &option })
	e := NewEstimator(params)

	info := TemplateInfo{LengthKm: 20, Mag: 6.42}
	assert.Equal(t, 6.42, e.MagnitudeFromLength(info, 20))
	assert.Equal(t, 6.42, e.MagnitudeFromLength(info, 300),
		"intrinsic relation reads the template, not the length")
}

func TestMagnitudeUncertaintyFloor(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	e := NewEstimator(params)

	m := &Match{LengthKm: 40, LengthUncer: 0}
	assert.Equal(t, magUncerFloor, e.magUncertainty(m))

	// A huge length spread raises the magnitude uncertainty above the
	// floor.
	m = &Match{LengthKm: 40, LengthUncer: 120}
	assert.Greater(t, e.magUncertainty(m), magUncerFloor)
}

func TestRegressionNeedsEnoughSStations(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	e := NewEstimator(params)

	obs := []Observation{
		station("CI", "AAA", 34.0, -118.0, 5, 100),
		station("CI", "BBB", 34.1, -118.1, 5, 100),
	}
	_, _, ok := e.regressMagnitude(geo.Coord{Lat: 34, Lon: -118}, obs, time.Time{}, testTime())
	assert.False(t, ok, "two stations cannot meet the S-station minimum")
}

func TestRegressionRecoversReasonableMagnitude(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	e := NewEstimator(params)
	centroid := geo.Coord{Lat: 34, Lon: -118}

	// Synthesize amplitudes from the S attenuation relation at M 4.0 so
	// the grid search can land on it exactly.
	mag := 4.0
	var obs []Observation
	coords := []geo.Coord{
		{Lat: 34.1, Lon: -118.0}, {Lat: 34.0, Lon: -118.2},
		{Lat: 33.8, Lon: -118.1}, {Lat: 34.2, Lon: -117.9},
		{Lat: 34.05, Lon: -117.8},
	}
	for i, c := range coords {
		d := geo.DistanceKm(c, centroid)
		hyp := math.Hypot(d, params.DefaultDepthKm)
		log10pga := attSBias + attSSlope*mag - attDecay*math.Log10(hyp+attNear)
		o := station("CI", string(rune('A'+i))+"ST", c.Lat, c.Lon, math.Pow(10, log10pga), 100)
		obs = append(obs, o)
	}

	// No origin time: every arrival counts as S.
	got, _, ok := e.regressMagnitude(centroid, obs, time.Time{}, testTime())
	require.True(t, ok)
	assert.InDelta(t, mag, got, params.RegressionMagStep+1e-9)
}

func TestMagnitudeRegressionFallback(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	e := NewEstimator(params)
	set := testSet(t, "est", []float64{0, 90}, []float64{5, 10})

	// A 5 km template maps to M ~5.4, under the regression threshold
	// only when the threshold is raised; with the default 4.5 threshold
	// the length relation stands even with no usable stations.
	m := &Match{Set: set, LengthIdx: 0, LengthKm: 5}
	est := e.Magnitude(m, nil, time.Time{}, testTime())
	assert.False(t, est.MagFromReg)
	assert.InDelta(t, 4.38+1.49*math.Log10(5), est.Mag, 1e-9)
}

func TestOriginTimeBackProjection(t *testing.T) {
	t.Parallel()

	params := testParams(t, func(c *config.Config) {
		c.OriginTimeMinDistKm = ptrFloat64(50)
	})
	e := NewEstimator(params)
	centroid := geo.Coord{Lat: 34, Lon: -118}

	origin := 1000.0
	// Stations ~55 to 110 km out; trigger time is origin + P travel time.
	coords := []geo.Coord{
		{Lat: 34.5, Lon: -118.0},
		{Lat: 34.0, Lon: -118.8},
		{Lat: 33.2, Lon: -118.1},
	}
	var obs []Observation
	for i, c := range coords {
		d := geo.DistanceKm(c, centroid)
		require.GreaterOrEqual(t, d, 50.0)
		hyp := math.Hypot(d, params.DefaultDepthKm)
		ts := origin + hyp/params.PWaveVelocity
		obs = append(obs, station("CI", string(rune('A'+i))+"OT", c.Lat, c.Lon, 20, ts))
	}

	m := &Match{Centroid: centroid, LengthKm: 10}
	est := e.OriginTime(m, obs, Estimate{})
	require.False(t, est.OriginTime.IsZero())
	got := float64(est.OriginTime.UnixNano()) / 1e9
	assert.InDelta(t, origin, got, 0.01)
}

func TestOriginTimeExcludesNearStations(t *testing.T) {
	t.Parallel()

	params := testParams(t, func(c *config.Config) {
		c.OriginTimeMinDistKm = ptrFloat64(50)
	})
	e := NewEstimator(params)
	centroid := geo.Coord{Lat: 34, Lon: -118}

	// Only a near station: nothing to back-project from.
	obs := []Observation{station("CI", "NEAR", 34.05, -118.0, 20, 1001)}
	m := &Match{Centroid: centroid, LengthKm: 10}
	est := e.OriginTime(m, obs, Estimate{})
	assert.True(t, est.OriginTime.IsZero())
}

func TestOriginTimeFreezesOnLongRuptures(t *testing.T) {
	t.Parallel()

	params := testParams(t, func(c *config.Config) {
		c.MaxLenForOriginKm = ptrFloat64(20)
	})
	e := NewEstimator(params)

	prev := Estimate{OriginTime: time.Unix(1000, 0)}
	m := &Match{Centroid: geo.Coord{Lat: 34, Lon: -118}, LengthKm: 80}
	est := e.OriginTime(m, nil, prev)

	assert.True(t, est.OriginFrozen)
	assert.Equal(t, prev.OriginTime, est.OriginTime)
}
