package finder

import (
	"fmt"
	"sort"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// TemplateInfo holds the per-template metadata recorded alongside each
// rupture-shape mask.
type TemplateInfo struct {
	LengthKm      float64
	WidthKm       float64
	Mag           float64
	DepthTopKm    float64
	DepthBottomKm float64
	CentroidRow   int // centroid pixel offset within the mask
	CentroidCol   int
}

// TemplateSet is an immutable library of precomputed rupture-shape masks
// over an ordered length grid and a strike grid. One matching task runs per
// template set per timestep. Loading from disk is the template library
// loader's job; NewTemplateSet only validates and freezes the data.
type TemplateSet struct {
	name    string
	dkm     float64 // raster resolution in km, both axes
	dip     float64 // fault dip in degrees
	strikes []float64
	lengths []float64
	masks   []grid.Grid // binary masks, index-aligned with lengths
	infos   []TemplateInfo

	minMag, maxMag float64
	polygon        []geo.Coord // applicability region, empty = everywhere
}

// NewTemplateSet validates and freezes a template set. Grid ordering,
// mask/metadata alignment, and resolution are checked; violations are fatal
// configuration errors.
func NewTemplateSet(name string, dkm, dip float64, strikes, lengths []float64,
	masks []grid.Grid, infos []TemplateInfo, minMag, maxMag float64, polygon []geo.Coord) (*TemplateSet, error) {

	if dkm <= 0 {
		return nil, &config.ConfigError{Field: name + ".dkm", Msg: "resolution must be positive"}
	}
	if len(strikes) == 0 {
		return nil, &config.ConfigError{Field: name + ".strikes", Msg: "strike grid is empty"}
	}
	if len(lengths) == 0 {
		return nil, &config.ConfigError{Field: name + ".lengths", Msg: "length grid is empty"}
	}
	if !sort.Float64sAreSorted(lengths) {
		return nil, &config.ConfigError{Field: name + ".lengths", Msg: "length grid must be ascending"}
	}
	if len(masks) != len(lengths) || len(infos) != len(lengths) {
		return nil, &config.ConfigError{
			Field: name,
			Msg: fmt.Sprintf("masks (%d) and infos (%d) must align with lengths (%d)",
				len(masks), len(infos), len(lengths)),
		}
	}
	for k, m := range masks {
		if m.IsEmpty() {
			return nil, &config.ConfigError{Field: name, Msg: fmt.Sprintf("mask %d is empty", k)}
		}
		info := infos[k]
		if info.CentroidRow < 0 || info.CentroidRow >= m.Rows() ||
			info.CentroidCol < 0 || info.CentroidCol >= m.Cols() {
			return nil, &config.ConfigError{
				Field: name,
				Msg:   fmt.Sprintf("template %d centroid offset outside mask", k),
			}
		}
	}

	set := &TemplateSet{
		name:    name,
		dkm:     dkm,
		dip:     dip,
		strikes: append([]float64(nil), strikes...),
		lengths: append([]float64(nil), lengths...),
		masks:   make([]grid.Grid, len(masks)),
		infos:   append([]TemplateInfo(nil), infos...),
		minMag:  minMag,
		maxMag:  maxMag,
		polygon: append([]geo.Coord(nil), polygon...),
	}
	for k, m := range masks {
		set.masks[k] = m.Clone()
	}
	return set, nil
}

// Name returns the template set name.
func (t *TemplateSet) Name() string { return t.name }

// ResolutionKm returns the raster resolution in km per pixel.
func (t *TemplateSet) ResolutionKm() float64 { return t.dkm }

// Dip returns the fault dip in degrees.
func (t *TemplateSet) Dip() float64 { return t.dip }

// NumStrikes returns the size of the strike grid.
func (t *TemplateSet) NumStrikes() int { return len(t.strikes) }

// NumLengths returns the size of the length grid.
func (t *TemplateSet) NumLengths() int { return len(t.lengths) }

// Strike returns the j-th strike azimuth in degrees.
func (t *TemplateSet) Strike(j int) float64 { return t.strikes[j] }

// Length returns the k-th rupture length in km.
func (t *TemplateSet) Length(k int) float64 { return t.lengths[k] }

// Mask returns the binary rupture-shape mask for the k-th length.
func (t *TemplateSet) Mask(k int) grid.Grid { return t.masks[k] }

// Info returns the metadata for the k-th length.
func (t *TemplateSet) Info(k int) TemplateInfo { return t.infos[k] }

// StrikeSpan returns the total extent of the strike grid in degrees.
func (t *TemplateSet) StrikeSpan() float64 {
	return t.strikes[len(t.strikes)-1] - t.strikes[0]
}

// Applies reports whether this set may be used for an event with the given
// prior magnitude and centroid. A zero magnitude bound means unbounded; an
// empty polygon applies everywhere.
func (t *TemplateSet) Applies(priorMag float64, centroid geo.Coord) bool {
	if t.minMag != 0 || t.maxMag != 0 {
		if priorMag != 0 && (priorMag < t.minMag || priorMag > t.maxMag) {
			return false
		}
	}
	if len(t.polygon) > 0 && !geo.InRegion(t.polygon, centroid) {
		return false
	}
	return true
}

// NearestLengthIndex returns the index of the grid length closest to km.
func (t *TemplateSet) NearestLengthIndex(km float64) int {
	best := 0
	for k := 1; k < len(t.lengths); k++ {
		if diff(t.lengths[k], km) < diff(t.lengths[best], km) {
			best = k
		}
	}
	return best
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
