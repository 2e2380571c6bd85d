package finder

import (
	"fmt"
	"math"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// ImageParams records the geographic extent and resolution of an event
// image. Row 0 is the northern edge, column 0 the western edge.
type ImageParams struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	NLat, NLon     int
	DLat, DLon     float64 // degrees per pixel
}

// CoordAt returns the geographic coordinate of a pixel centre.
func (p ImageParams) CoordAt(row, col int) geo.Coord {
	return geo.Coord{
		Lat: p.MaxLat - float64(row)*p.DLat,
		Lon: p.MinLon + float64(col)*p.DLon,
	}
}

// EventImage is the per-timestep stack of exceedance rasters, one binary
// layer per configured threshold, lowest threshold first. It is rebuilt
// every timestep and never persisted.
type EventImage struct {
	Params ImageParams
	Layers grid.Stack
}

// ImageBuilder turns a filtered observation window into an EventImage via
// the external grid interpolator.
type ImageBuilder struct {
	params       config.Params
	resolutionKm float64
	interp       GridInterpolator
}

// NewImageBuilder returns a builder producing rasters at resolutionKm per
// pixel (normally the primary template set's resolution).
func NewImageBuilder(params config.Params, resolutionKm float64, interp GridInterpolator) (*ImageBuilder, error) {
	if resolutionKm <= 0 {
		return nil, &config.ConfigError{Field: "resolution_km", Msg: "must be positive"}
	}
	if interp == nil {
		return nil, &config.ConfigError{Field: "interpolator", Msg: "is required"}
	}
	return &ImageBuilder{params: params, resolutionKm: resolutionKm, interp: interp}, nil
}

// Build produces the exceedance stack for one timestep. Observations still
// in their P-wave window (the S front has not reached them yet) are scaled
// by the configured P factor before gridding. When the lowest-threshold
// layer has fewer pixels than the configured minimum, Build returns
// ErrSkipTimestep and no search should run this timestep.
func (b *ImageBuilder) Build(obs []Observation, timestamp float64, origin geo.Coord, originTime float64) (*EventImage, error) {
	usable := included(obs)
	if len(usable) == 0 {
		return nil, ErrSkipTimestep
	}

	minLat, maxLat, minLon, maxLon, ok := boundingBox(usable, b.params.BorderDegrees)
	if !ok {
		return nil, ErrSkipTimestep
	}

	avgLat := (minLat + maxLat) / 2
	dLat := geo.KmToLat(b.resolutionKm)
	dLon := geo.KmToLon(b.resolutionKm, avgLat)
	nLat := int(math.Ceil((maxLat-minLat)/dLat)) + 1
	nLon := int(math.Ceil((maxLon-minLon)/dLon)) + 1
	if nLat < 2 || nLon < 2 {
		return nil, ErrSkipTimestep
	}

	points := make([]ScatterPoint, 0, len(usable))
	for _, o := range usable {
		pga := o.PGA
		if b.isPPhase(o, timestamp, origin, originTime) {
			pga *= b.params.PhaseScaleP
		}
		v := b.params.MinLog10PGA
		if pga > 0 {
			v = math.Log10(pga)
		}
		points = append(points, ScatterPoint{Lat: o.Coord.Lat, Lon: o.Coord.Lon, Value: v})
	}

	imgParams := ImageParams{
		MinLat: minLat, MaxLat: maxLat,
		MinLon: minLon, MaxLon: maxLon,
		NLat: nLat, NLon: nLon,
		DLat: dLat, DLon: dLon,
	}
	surface, err := b.interp.Interpolate(points, GridSpec{
		MinLat: minLat, MaxLat: maxLat,
		MinLon: minLon, MaxLon: maxLon,
		NLat: nLat, NLon: nLon,
		Tension: b.params.Tension,
		Border:  b.params.MinLog10PGA,
	})
	if err != nil {
		return nil, fmt.Errorf("grid interpolation failed: %w", err)
	}

	layers := make([]grid.Grid, len(b.params.Thresholds))
	for i, threshold := range b.params.Thresholds {
		layers[i] = surface.Threshold(math.Log10(threshold))
	}
	stack := grid.NewStack(layers)

	if stack.Count(0) < b.params.MinImagePixels {
		return nil, ErrSkipTimestep
	}
	return &EventImage{Params: imgParams, Layers: stack}, nil
}

// isPPhase reports whether the S-wave front has not yet reached the
// station, in which case the observation is still a P-phase amplitude.
// With no origin time available everything is treated as S. Stations
// without their own sample time fall back to the window timestamp.
func (b *ImageBuilder) isPPhase(o Observation, timestamp float64, origin geo.Coord, originTime float64) bool {
	if originTime <= 0 {
		return false
	}
	at := o.Timestamp
	if at == 0 {
		at = timestamp
	}
	elapsed := at - originTime
	if elapsed <= 0 {
		return false
	}
	return geo.DistanceKm(origin, o.Coord) > elapsed*b.params.SWaveVelocity
}
