package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridAccess(t *testing.T) {
	t.Parallel()

	g := New(3, 4)
	assert.Equal(t, 3, g.Rows())
	assert.Equal(t, 4, g.Cols())

	g.Set(1, 2, 7.5)
	assert.Equal(t, 7.5, g.At(1, 2))
	assert.Equal(t, 0.0, g.At(0, 0))
}

func TestGridBoundsPanics(t *testing.T) {
	t.Parallel()

	g := New(2, 2)

	checkPanic := func(t *testing.T, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			require.NotNil(t, r)
			_, ok := r.(*BoundsError)
			assert.True(t, ok, "expected *BoundsError, got %T", r)
		}()
		fn()
	}

	checkPanic(t, func() { g.At(2, 0) })
	checkPanic(t, func() { g.At(0, -1) })
	checkPanic(t, func() { g.Set(-1, 0, 1) })
	checkPanic(t, func() { NewStack(nil).Layer(0) })
}

func TestFromSlice(t *testing.T) {
	t.Parallel()

	g, err := FromSlice(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, g.At(1, 0))

	_, err = FromSlice(2, 2, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestGridCloneIsIndependent(t *testing.T) {
	t.Parallel()

	g := New(2, 2)
	g.Set(0, 0, 1)
	c := g.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 9.0, c.At(0, 0))
}

func TestThresholdAndCounts(t *testing.T) {
	t.Parallel()

	g, err := FromSlice(2, 3, []float64{0.1, 0.5, 1.2, -0.3, 0.5, 2.0})
	require.NoError(t, err)

	b := g.Threshold(0.5)
	assert.Equal(t, 4, b.CountAbove(0))
	assert.Equal(t, 4.0, b.Sum())
	assert.Equal(t, 1.0, b.At(0, 1))
	assert.Equal(t, 0.0, b.At(1, 0))
}

func TestStack(t *testing.T) {
	t.Parallel()

	loose, err := FromSlice(2, 2, []float64{1, 1, 1, 0})
	require.NoError(t, err)
	strict, err := FromSlice(2, 2, []float64{1, 0, 0, 0})
	require.NoError(t, err)

	s := NewStack([]Grid{loose, strict})
	require.Equal(t, 2, s.Len())

	// Stricter layers never exceed looser layers.
	assert.LessOrEqual(t, s.Count(1), s.Count(0))
	assert.Equal(t, 3, s.Count(0))
	assert.Equal(t, 1, s.Count(1))
	assert.Equal(t, 1.0, s.Layer(0).At(0, 1))
}

func TestCube(t *testing.T) {
	t.Parallel()

	c := NewCube(2, 3, 4, 1.0)
	assert.Equal(t, 1.0, c.At(1, 2, 3))

	c.Set(1, 2, 3, 0.25)
	assert.Equal(t, 0.25, c.At(1, 2, 3))
	assert.Equal(t, 1.0, c.At(0, 0, 0))

	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(*BoundsError)
		assert.True(t, ok)
	}()
	c.At(2, 0, 0)
}
