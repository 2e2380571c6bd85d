// Package rastermatch supplies the default rotation and correlation
// primitives behind the template-matching grid search. The correlation
// metric follows the matched-filter convention: normalized mean absolute
// difference between the binary template and the thresholded image patch,
// so 0 is a perfect fit and 1 a complete mismatch.
package rastermatch

import (
	"math"

	"github.com/banshee-data/rupture.report/internal/finder"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// Engine implements finder.RasterEngine with plain nearest-neighbour
// rotation and an exhaustive sliding correlation. Each matching task gets
// its own Engine; instances hold no shared state.
type Engine struct{}

// New returns a fresh engine. Build one per concurrent matching task.
func New() *Engine { return &Engine{} }

// Rotate returns src rotated counter-clockwise by angleDeg about its
// centre. The output is resized to hold the rotated footprint; cells with
// no source pixel stay zero.
func (e *Engine) Rotate(src grid.Grid, angleDeg float64) grid.Grid {
	rows, cols := src.Rows(), src.Cols()
	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	// Rotated bounding box.
	w := float64(cols)
	h := float64(rows)
	outW := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	outH := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := grid.New(outH, outW)
	cxSrc, cySrc := (w-1)/2, (h-1)/2
	cxDst, cyDst := (float64(outW)-1)/2, (float64(outH)-1)/2

	// Inverse mapping: for each destination cell find the source pixel
	// that lands there.
	for r := 0; r < outH; r++ {
		for c := 0; c < outW; c++ {
			dx := float64(c) - cxDst
			dy := float64(r) - cyDst
			sx := cos*dx - sin*dy + cxSrc
			sy := sin*dx + cos*dy + cySrc
			sc := int(math.Round(sx))
			sr := int(math.Round(sy))
			if sr < 0 || sr >= rows || sc < 0 || sc >= cols {
				continue
			}
			dst.Set(r, c, src.At(sr, sc))
		}
	}
	return dst
}

// Correlate slides templ over image and returns the placement with the
// smallest normalized absolute difference. A template larger than the
// image in either dimension cannot be evaluated and returns
// finder.ErrDegenerateCell.
func (e *Engine) Correlate(templ, image grid.Grid) (finder.MatchResult, error) {
	tr, tc := templ.Rows(), templ.Cols()
	ir, ic := image.Rows(), image.Cols()
	if tr > ir || tc > ic {
		return finder.MatchResult{}, finder.ErrDegenerateCell
	}

	area := float64(tr * tc)
	best := finder.MatchResult{Misfit: math.Inf(1)}
	for r := 0; r+tr <= ir; r++ {
		for c := 0; c+tc <= ic; c++ {
			sum := 0.0
			for i := 0; i < tr; i++ {
				for j := 0; j < tc; j++ {
					sum += math.Abs(templ.At(i, j) - image.At(r+i, c+j))
				}
			}
			m := sum / area
			if m < best.Misfit {
				best = finder.MatchResult{Row: r, Col: c, Misfit: m}
			}
		}
	}
	if math.IsInf(best.Misfit, 1) {
		return finder.MatchResult{}, finder.ErrDegenerateCell
	}
	return best, nil
}
