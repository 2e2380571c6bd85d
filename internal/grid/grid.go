// Package grid provides bounds-checked raster containers for the rupture
// engine: a 2D float64 Grid, an ordered Stack of exceedance layers, and a
// flattened 3D Cube used by the template-matching grid search.
//
// Index violations surface as a *BoundsError rather than being clamped or
// silently wrapped. Out-of-bounds access is a programming error on the
// caller's side, so accessors panic with the typed error; callers that need
// to recover it at a package boundary can use errors.As on the recovered
// value.
package grid

import "fmt"

// BoundsError reports an index outside a container's dimensions.
type BoundsError struct {
	Op   string
	Idx  []int
	Dims []int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("grid: %s index %v outside dims %v", e.Op, e.Idx, e.Dims)
}

// Grid is an owned, bounds-checked 2D raster in row-major order.
// Rows index latitude (north to south in engine usage), columns longitude.
type Grid struct {
	rows int
	cols int
	data []float64
}

// New returns a zero-filled rows x cols grid.
func New(rows, cols int) Grid {
	if rows < 0 || cols < 0 {
		panic(&BoundsError{Op: "new", Idx: []int{rows, cols}})
	}
	return Grid{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromSlice wraps values (row-major, len == rows*cols) in a Grid.
// The slice is copied so the grid owns its storage.
func FromSlice(rows, cols int, values []float64) (Grid, error) {
	if len(values) != rows*cols {
		return Grid{}, fmt.Errorf("grid: %d values for %dx%d grid", len(values), rows, cols)
	}
	g := New(rows, cols)
	copy(g.data, values)
	return g, nil
}

// Rows returns the number of rows.
func (g Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g Grid) Cols() int { return g.cols }

// IsEmpty reports whether the grid has zero cells.
func (g Grid) IsEmpty() bool { return g.rows == 0 || g.cols == 0 }

func (g Grid) check(op string, r, c int) {
	if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
		panic(&BoundsError{Op: op, Idx: []int{r, c}, Dims: []int{g.rows, g.cols}})
	}
}

// At returns the value at (r, c).
func (g Grid) At(r, c int) float64 {
	g.check("at", r, c)
	return g.data[r*g.cols+c]
}

// Set stores v at (r, c).
func (g Grid) Set(r, c int, v float64) {
	g.check("set", r, c)
	g.data[r*g.cols+c] = v
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := New(g.rows, g.cols)
	copy(out.data, g.data)
	return out
}

// Fill sets every cell to v.
func (g Grid) Fill(v float64) {
	for i := range g.data {
		g.data[i] = v
	}
}

// CountAbove returns the number of cells with value > threshold.
func (g Grid) CountAbove(threshold float64) int {
	n := 0
	for _, v := range g.data {
		if v > threshold {
			n++
		}
	}
	return n
}

// Sum returns the sum of all cells.
func (g Grid) Sum() float64 {
	var s float64
	for _, v := range g.data {
		s += v
	}
	return s
}

// Threshold returns a binary grid with 1 where value >= threshold, else 0.
func (g Grid) Threshold(threshold float64) Grid {
	out := New(g.rows, g.cols)
	for i, v := range g.data {
		if v >= threshold {
			out.data[i] = 1
		}
	}
	return out
}

// Stack is an ordered list of exceedance layers, lowest threshold first,
// with cached per-layer pixel counts.
type Stack struct {
	layers []Grid
	counts []int
}

// NewStack builds a stack from layers in threshold order. Pixel counts are
// the number of non-zero cells per layer.
func NewStack(layers []Grid) Stack {
	counts := make([]int, len(layers))
	for i, l := range layers {
		counts[i] = l.CountAbove(0)
	}
	return Stack{layers: layers, counts: counts}
}

// Len returns the number of layers.
func (s Stack) Len() int { return len(s.layers) }

// Layer returns the i-th layer.
func (s Stack) Layer(i int) Grid {
	if i < 0 || i >= len(s.layers) {
		panic(&BoundsError{Op: "layer", Idx: []int{i}, Dims: []int{len(s.layers)}})
	}
	return s.layers[i]
}

// Count returns the cached pixel count of the i-th layer.
func (s Stack) Count(i int) int {
	if i < 0 || i >= len(s.counts) {
		panic(&BoundsError{Op: "count", Idx: []int{i}, Dims: []int{len(s.counts)}})
	}
	return s.counts[i]
}

// Cube is a flattened 3D float64 container indexed (i, j, k), used to hold
// the per-(threshold, strike, length) search results.
type Cube struct {
	d1, d2, d3 int
	data       []float64
}

// NewCube returns a cube with every cell set to fill.
func NewCube(d1, d2, d3 int, fill float64) Cube {
	if d1 < 0 || d2 < 0 || d3 < 0 {
		panic(&BoundsError{Op: "newcube", Idx: []int{d1, d2, d3}})
	}
	c := Cube{d1: d1, d2: d2, d3: d3, data: make([]float64, d1*d2*d3)}
	if fill != 0 {
		for i := range c.data {
			c.data[i] = fill
		}
	}
	return c
}

func (c Cube) check(op string, i, j, k int) {
	if i < 0 || i >= c.d1 || j < 0 || j >= c.d2 || k < 0 || k >= c.d3 {
		panic(&BoundsError{Op: op, Idx: []int{i, j, k}, Dims: []int{c.d1, c.d2, c.d3}})
	}
}

// At returns the value at (i, j, k).
func (c Cube) At(i, j, k int) float64 {
	c.check("at", i, j, k)
	return c.data[(i*c.d2+j)*c.d3+k]
}

// Set stores v at (i, j, k).
func (c Cube) Set(i, j, k int, v float64) {
	c.check("set", i, j, k)
	c.data[(i*c.d2+j)*c.d3+k] = v
}
