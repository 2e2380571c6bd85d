package finder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

func TestNewTemplateSetValidation(t *testing.T) {
	t.Parallel()

	mask := grid.New(2, 2)
	mask.Fill(1)
	info := TemplateInfo{LengthKm: 10}

	cases := []struct {
		name    string
		build   func() (*TemplateSet, error)
	}{
		{"zero resolution", func() (*TemplateSet, error) {
			return NewTemplateSet("t", 0, 90, []float64{0}, []float64{10},
				[]grid.Grid{mask}, []TemplateInfo{info}, 0, 10, nil)
		}},
		{"no strikes", func() (*TemplateSet, error) {
			return NewTemplateSet("t", 5, 90, nil, []float64{10},
				[]grid.Grid{mask}, []TemplateInfo{info}, 0, 10, nil)
		}},
		{"descending lengths", func() (*TemplateSet, error) {
			m2 := grid.New(2, 2)
			return NewTemplateSet("t", 5, 90, []float64{0}, []float64{20, 10},
				[]grid.Grid{mask, m2}, []TemplateInfo{info, info}, 0, 10, nil)
		}},
		{"mask misalignment", func() (*TemplateSet, error) {
			return NewTemplateSet("t", 5, 90, []float64{0}, []float64{10, 20},
				[]grid.Grid{mask}, []TemplateInfo{info}, 0, 10, nil)
		}},
		{"centroid outside mask", func() (*TemplateSet, error) {
			bad := TemplateInfo{LengthKm: 10, CentroidRow: 5, CentroidCol: 0}
			return NewTemplateSet("t", 5, 90, []float64{0}, []float64{10},
				[]grid.Grid{mask}, []TemplateInfo{bad}, 0, 10, nil)
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.build()
			var cfgErr *config.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestTemplateSetImmutable(t *testing.T) {
	t.Parallel()

	mask := grid.New(2, 2)
	mask.Fill(1)
	strikes := []float64{0, 90}
	set, err := NewTemplateSet("t", 5, 90, strikes, []float64{10},
		[]grid.Grid{mask}, []TemplateInfo{{LengthKm: 10}}, 0, 10, nil)
	require.NoError(t, err)

	// Mutating the inputs afterwards must not reach the set.
	strikes[0] = 45
	mask.Set(0, 0, 99)

	assert.Equal(t, 0.0, set.Strike(0))
	assert.Equal(t, 1.0, set.Mask(0).At(0, 0))
}

func TestTemplateSetApplies(t *testing.T) {
	t.Parallel()

	mask := grid.New(2, 2)
	mask.Fill(1)
	region := []geo.Coord{
		{Lat: 33, Lon: -120}, {Lat: 36, Lon: -120},
		{Lat: 36, Lon: -115}, {Lat: 33, Lon: -115},
	}
	set, err := NewTemplateSet("socal", 5, 90, []float64{0}, []float64{10},
		[]grid.Grid{mask}, []TemplateInfo{{LengthKm: 10}}, 5, 8, region)
	require.NoError(t, err)

	inside := geo.Coord{Lat: 34, Lon: -118}
	outside := geo.Coord{Lat: 40, Lon: -118}

	assert.True(t, set.Applies(6, inside))
	assert.False(t, set.Applies(6, outside), "outside the applicability polygon")
	assert.False(t, set.Applies(9.5, inside), "above the magnitude band")
	assert.True(t, set.Applies(0, inside), "no prior magnitude matches any band")
}

func TestNearestLengthIndex(t *testing.T) {
	t.Parallel()

	set := testSet(t, "near", []float64{0}, []float64{5, 10, 20, 40})
	assert.Equal(t, 0, set.NearestLengthIndex(1))
	assert.Equal(t, 1, set.NearestLengthIndex(11))
	assert.Equal(t, 2, set.NearestLengthIndex(22))
	assert.Equal(t, 3, set.NearestLengthIndex(500))
}

func TestGenerateTemplateSet(t *testing.T) {
	t.Parallel()

	set, err := GenerateTemplateSet(GenSpec{
		Name:         "gen",
		ResolutionKm: 5,
		DipDeg:       90,
		StrikeStep:   30,
		Lengths:      []float64{10, 40, 160},
		AspectRatio:  4,
		DepthTopKm:   0,
		DepthMaxKm:   20,
		MaxMag:       10,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, set.NumStrikes(), "strikes cover [0, 180) at the step")
	assert.Equal(t, 3, set.NumLengths())

	// Width saturates at the seismogenic depth extent.
	assert.Equal(t, 10.0, set.Info(1).WidthKm)
	assert.Equal(t, 20.0, set.Info(2).WidthKm)

	for k := 0; k < set.NumLengths(); k++ {
		info := set.Info(k)
		m := set.Mask(k)
		assert.GreaterOrEqual(t, info.CentroidRow, 0)
		assert.Less(t, info.CentroidRow, m.Rows())
		assert.Greater(t, info.Mag, 0.0)
		assert.Greater(t, m.Sum(), 0.0)
	}
}
