package rastermatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rupture.report/internal/finder"
	"github.com/banshee-data/rupture.report/internal/grid"
)

func rect(rows, cols int) grid.Grid {
	g := grid.New(rows, cols)
	g.Fill(1)
	return g
}

func TestRotateZeroDegreesKeepsShape(t *testing.T) {
	t.Parallel()

	e := New()
	src := rect(4, 2)
	dst := e.Rotate(src, 0)

	assert.Equal(t, 4, dst.Rows())
	assert.Equal(t, 2, dst.Cols())
	assert.Equal(t, src.Sum(), dst.Sum())
}

func TestRotateNinetyDegreesSwapsDims(t *testing.T) {
	t.Parallel()

	e := New()
	dst := e.Rotate(rect(6, 2), 90)
	assert.Equal(t, 2, dst.Rows())
	assert.Equal(t, 6, dst.Cols())
}

func TestRotatePreservesMassApproximately(t *testing.T) {
	t.Parallel()

	e := New()
	src := rect(10, 4)
	dst := e.Rotate(src, 37)

	// Nearest-neighbour resampling can drop or duplicate edge cells but
	// the bulk of the mask must survive.
	assert.InDelta(t, src.Sum(), dst.Sum(), 0.25*src.Sum())
}

func TestCorrelatePerfectMatch(t *testing.T) {
	t.Parallel()

	e := New()
	image := grid.New(8, 8)
	for r := 2; r < 5; r++ {
		for c := 3; c < 5; c++ {
			image.Set(r, c, 1)
		}
	}
	templ := rect(3, 2)

	res, err := e.Correlate(templ, image)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Row)
	assert.Equal(t, 3, res.Col)
	assert.Equal(t, 0.0, res.Misfit)
}

func TestCorrelateOversizedTemplateIsDegenerate(t *testing.T) {
	t.Parallel()

	e := New()
	_, err := e.Correlate(rect(10, 10), rect(4, 4))
	assert.ErrorIs(t, err, finder.ErrDegenerateCell)
}

func TestCorrelateMisfitBounded(t *testing.T) {
	t.Parallel()

	e := New()
	image := grid.New(6, 6) // all zeros
	res, err := e.Correlate(rect(3, 3), image)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Misfit, "all-ones template on an empty image misses every cell")
}
