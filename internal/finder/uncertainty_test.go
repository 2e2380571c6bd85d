package finder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rupture.report/internal/config"
)

func TestUncertaintyPointSourceAzimuthFloor(t *testing.T) {
	t.Parallel()

	params := testParams(t, func(c *config.Config) {
		c.PointSourceLenKm = ptrFloat64(5)
	})
	set := testSet(t, "ps", []float64{0, 45, 90, 135}, []float64{4, 10, 20})
	img := testImage(t, params, len(params.Thresholds))

	// Shortest length wins: a 4 km rupture is effectively a point source.
	eng := &scriptEngine{misfit: func(strike float64, rows int) (float64, int, int, bool) {
		if rows == 1 {
			return 0.05, 1, 1, true
		}
		return 0.25, 1, 1, true
	}}

	state := NewMatchState(len(params.Thresholds))
	m, err := NewMatcher(params, set, eng).Run(img, state, true)
	require.NoError(t, err)
	require.Equal(t, 4.0, m.LengthKm)

	assert.Equal(t, set.StrikeSpan(), m.AzimuthUncer,
		"a point source carries no orientation, so the full strike span is reported")
}

func TestUncertaintySharperFitIsMoreLikely(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	set := testSet(t, "llk", []float64{0, 90}, []float64{10, 20})
	img := testImage(t, params, len(params.Thresholds))

	run := func(misfit float64) *Match {
		eng := &scriptEngine{misfit: func(strike float64, rows int) (float64, int, int, bool) {
			return misfit, 1, 1, true
		}}
		state := NewMatchState(len(params.Thresholds))
		m, err := NewMatcher(params, set, eng).Run(img, state, true)
		require.NoError(t, err)
		return m
	}

	sharp := run(0.02)
	loose := run(0.25)
	assert.Greater(t, sharp.Likelihood, loose.Likelihood)
	assert.InDelta(t, 1.0, run(0.0).Likelihood, 1e-12)
}

func TestUncertaintyCurvesCoverGrid(t *testing.T) {
	t.Parallel()

	params := testParams(t, nil)
	strikes := []float64{0, 45, 90, 135}
	lengths := []float64{10, 20, 40}
	set := testSet(t, "curves", strikes, lengths)
	img := testImage(t, params, len(params.Thresholds))

	eng := &scriptEngine{misfit: func(strike float64, rows int) (float64, int, int, bool) {
		return 0.05 + 0.01*strike/45, 1, 1, true
	}}

	state := NewMatchState(len(params.Thresholds))
	m, err := NewMatcher(params, set, eng).Run(img, state, true)
	require.NoError(t, err)

	assert.Len(t, m.AzimuthMisfits, len(strikes))
	assert.Len(t, m.LengthMisfits, len(lengths))
	assert.Len(t, m.AzimuthLLK, len(strikes))
	assert.Len(t, m.LengthLLK, len(lengths))

	for _, vl := range m.AzimuthLLK {
		assert.LessOrEqual(t, vl.LLK, 0.0)
	}
	assert.NotEmpty(t, m.CentroidLatPDF)
	assert.NotEmpty(t, m.CentroidLonPDF)
	assert.Greater(t, m.LatUncer, 0.0)
	assert.Greater(t, m.LonUncer, 0.0)
}

func TestUncertaintyConfiguredSigmasScaleSpreads(t *testing.T) {
	t.Parallel()

	// Flat misfits across the whole grid leave the Gaussian deviation
	// priors as the only weighting, so the spreads track the configured
	// sigmas directly.
	run := func(azSigma, lenSigma float64) *Match {
		params := testParams(t, func(c *config.Config) {
			c.SigmaAzimuth = ptrFloat64(azSigma)
			c.SigmaLength = ptrFloat64(lenSigma)
		})
		set := testSet(t, "sigmas", []float64{0, 45, 90, 135}, []float64{10, 20, 40})
		img := testImage(t, params, len(params.Thresholds))
		eng := &scriptEngine{misfit: func(strike float64, rows int) (float64, int, int, bool) {
			return 0.05, 1, 1, true
		}}
		state := NewMatchState(len(params.Thresholds))
		m, err := NewMatcher(params, set, eng).Run(img, state, true)
		require.NoError(t, err)
		return m
	}

	narrow := run(5, 0.05)
	wide := run(60, 1.0)
	assert.Less(t, narrow.AzimuthUncer, wide.AzimuthUncer)
	assert.Less(t, narrow.LengthUncer, wide.LengthUncer)
}

func TestFoldAzimuth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, foldAzimuth(0))
	assert.Equal(t, 0.0, foldAzimuth(180))
	assert.Equal(t, -10.0, foldAzimuth(170))
	assert.Equal(t, 30.0, foldAzimuth(-150))
	assert.InDelta(t, -90.0, foldAzimuth(90), 1e-12)
}

func TestWeightedSpread(t *testing.T) {
	t.Parallel()

	// Uniform weights reduce to the plain standard deviation about zero.
	dev := []float64{-1, 0, 1}
	w := []float64{1, 1, 1}
	got := weightedSpread(dev, w)
	assert.InDelta(t, math.Sqrt(2.0/3.0), got, 1e-9)

	assert.Equal(t, 0.0, weightedSpread([]float64{0}, []float64{1}))
	assert.Equal(t, 0.0, weightedSpread(dev, []float64{0, 0, 0}))
}
