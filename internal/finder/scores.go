package finder

import "github.com/banshee-data/rupture.report/internal/geo"

// ValueMisfit pairs a tested parameter value (a length in km or an azimuth
// in degrees) with its normalized misfit. Lower misfit means better fit.
type ValueMisfit struct {
	Value  float64
	Misfit float64
}

// ValueLogLikelihood pairs a tested parameter value with its log
// likelihood. Higher values mean better fit.
type ValueLogLikelihood struct {
	Value float64
	LLK   float64
}

// PointLogLikelihood pairs a geographic location with its log likelihood,
// used for the centroid latitude/longitude likelihood surfaces.
type PointLogLikelihood struct {
	Coord geo.Coord
	LLK   float64
}
