package finder

import (
	"math"

	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// GenSpec describes a generated rectangular template set: ruptures of the
// given lengths at every strike, rasterized at ResolutionKm per cell.
// Width follows the length through a fixed aspect ratio, capped by the
// seismogenic depth extent.
type GenSpec struct {
	Name         string
	ResolutionKm float64
	DipDeg       float64
	StrikeStep   float64 // degrees between strikes over [0, 180)
	Lengths      []float64
	AspectRatio  float64 // width = length / AspectRatio
	DepthTopKm   float64
	DepthMaxKm   float64
	MinMag       float64
	MaxMag       float64
	Region       []geo.Coord
}

// GenerateTemplateSet rasterizes rectangular rupture templates. Strike 0
// points north; rotation to other strikes happens at match time, so the
// masks here are all north-aligned with length along rows.
func GenerateTemplateSet(spec GenSpec) (*TemplateSet, error) {
	if spec.StrikeStep <= 0 {
		spec.StrikeStep = 10
	}
	if spec.AspectRatio <= 0 {
		spec.AspectRatio = 3.5
	}

	var strikes []float64
	for s := 0.0; s < 180; s += spec.StrikeStep {
		strikes = append(strikes, s)
	}

	masks := make([]grid.Grid, len(spec.Lengths))
	infos := make([]TemplateInfo, len(spec.Lengths))
	for k, L := range spec.Lengths {
		w := L / spec.AspectRatio
		maxW := (spec.DepthMaxKm - spec.DepthTopKm) / math.Sin(spec.DipDeg*math.Pi/180)
		if w > maxW {
			w = maxW
		}
		if w < spec.ResolutionKm {
			w = spec.ResolutionKm
		}

		rows := int(math.Ceil(L/spec.ResolutionKm)) + 1
		cols := int(math.Ceil(w/spec.ResolutionKm)) + 1
		mask := grid.New(rows, cols)
		mask.Fill(1)
		masks[k] = mask

		infos[k] = TemplateInfo{
			LengthKm:      L,
			WidthKm:       w,
			Mag:           wcIntercept + wcSlope*math.Log10(L),
			DepthTopKm:    spec.DepthTopKm,
			DepthBottomKm: spec.DepthTopKm + w*math.Sin(spec.DipDeg*math.Pi/180),
			CentroidRow:   rows / 2,
			CentroidCol:   cols / 2,
		}
	}

	return NewTemplateSet(spec.Name, spec.ResolutionKm, spec.DipDeg,
		strikes, spec.Lengths, masks, infos, spec.MinMag, spec.MaxMag, spec.Region)
}
