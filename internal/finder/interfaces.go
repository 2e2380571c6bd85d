package finder

import "github.com/banshee-data/rupture.report/internal/grid"

// ScatterPoint is one scattered (lat, lon, value) sample handed to the grid
// interpolator.
type ScatterPoint struct {
	Lat   float64
	Lon   float64
	Value float64
}

// GridSpec describes the dense raster an interpolator must produce.
// Row 0 is the northern edge (MaxLat); column 0 the western edge (MinLon).
type GridSpec struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	NLat, NLon     int
	Tension        float64 // surface tension factor, [0, 1]
	Border         float64 // fill value outside data support
}

// GridInterpolator turns scattered samples into a dense raster. The numeric
// internals are not specified here; implementations must be safe for
// concurrent use.
type GridInterpolator interface {
	Interpolate(points []ScatterPoint, spec GridSpec) (grid.Grid, error)
}

// MatchResult is the best placement found by a correlation pass: the image
// pixel the template's reference cell landed on and the normalized misfit
// there (lower is better).
type MatchResult struct {
	Row    int
	Col    int
	Misfit float64
}

// RasterEngine provides the rotation and correlation primitives used by the
// template-matching grid search. A single RasterEngine instance must not be
// shared across concurrent matching tasks; the engine constructs one per
// task via a factory.
type RasterEngine interface {
	// Rotate returns src rotated counter-clockwise by angle degrees about
	// its centre, resized to contain the rotated footprint.
	Rotate(src grid.Grid, angleDeg float64) grid.Grid

	// Correlate slides templ over image and returns the best placement.
	// A template that cannot fit inside the image is a degenerate cell and
	// returns ErrDegenerateCell.
	Correlate(templ, image grid.Grid) (MatchResult, error)
}
