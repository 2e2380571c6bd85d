package finder

import (
	"errors"
	"math"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
	"github.com/banshee-data/rupture.report/internal/grid"
)

// MatchState carries the timestep-to-timestep hysteresis for one
// (event, template set) pair: the best-fit indices per threshold plus a
// one-step-prior copy used to damp jitter and to seed the fast search.
// All indices always lie within the owning template set's grid bounds.
type MatchState struct {
	BestThreshold int
	PrevThreshold int
	BestStrikes   []int
	BestLengths   []int
	PrevStrikes   []int
	PrevLengths   []int
	MinMisfits    []float64

	Ran  bool // a search has completed at least once
	Used bool // this set won the cross-set selection last timestep
}

// NewMatchState returns hysteresis state for nThresholds layers.
func NewMatchState(nThresholds int) *MatchState {
	ms := &MatchState{
		BestStrikes: make([]int, nThresholds),
		BestLengths: make([]int, nThresholds),
		PrevStrikes: make([]int, nThresholds),
		PrevLengths: make([]int, nThresholds),
		MinMisfits:  make([]float64, nThresholds),
	}
	for i := range ms.MinMisfits {
		ms.MinMisfits[i] = 1.0
	}
	return ms
}

// carryForward copies current bests into the prior vectors, but only for
// thresholds at or above the last globally selected threshold. Lower
// thresholds keep their older priors, damping jitter between timesteps.
func (ms *MatchState) carryForward() {
	if ms.BestThreshold > ms.PrevThreshold {
		ms.PrevThreshold = ms.BestThreshold
	}
	for i := ms.BestThreshold; i < len(ms.PrevStrikes); i++ {
		ms.PrevStrikes[i] = ms.BestStrikes[i]
		ms.PrevLengths[i] = ms.BestLengths[i]
	}
}

// Match is the outcome of one template set's grid search for one timestep.
type Match struct {
	Set *TemplateSet

	ThresholdIdx int
	StrikeIdx    int
	LengthIdx    int

	Misfit     float64
	Likelihood float64

	StrikeDeg float64
	LengthKm  float64
	Centroid  geo.Coord

	// Per-parameter misfit curves at the winning threshold.
	AzimuthMisfits []ValueMisfit
	LengthMisfits  []ValueMisfit

	// Gaussian likelihood products; filled by the uncertainty pass.
	AzimuthLLK     []ValueLogLikelihood
	LengthLLK      []ValueLogLikelihood
	CentroidLatPDF []PointLogLikelihood
	CentroidLonPDF []PointLogLikelihood

	AzimuthUncer float64
	LengthUncer  float64
	LatUncer     float64
	LonUncer     float64

	Rupture []geo.Coord3D
}

// Matcher grid-searches one template set against an event image. Each
// matcher owns its raster engine; matchers for different sets may run
// concurrently as long as they do not share engines.
type Matcher struct {
	params config.Params
	set    *TemplateSet
	eng    RasterEngine
}

// NewMatcher builds a matcher for one template set.
func NewMatcher(params config.Params, set *TemplateSet, eng RasterEngine) *Matcher {
	return &Matcher{params: params, set: set, eng: eng}
}

// thresholdBest is the per-threshold winner of the strike x length search.
type thresholdBest struct {
	valid  bool
	strike int
	length int
	loc    MatchResult
	misfit float64
}

// Run searches strike x length x threshold for the best-fit template and
// updates the hysteresis state. When fullSearch is false and a stable prior
// solution exists, the search narrows to a window around the previous
// timestep's indices. A threshold with no valid correlation cell is
// excluded; if no threshold yields a solution Run returns ErrSkipTimestep.
func (m *Matcher) Run(img *EventImage, state *MatchState, fullSearch bool) (*Match, error) {
	nT := img.Layers.Len()
	nStrikes := m.set.NumStrikes()
	nLengths := m.set.NumLengths()

	// Misfit per (threshold, strike, length); +Inf marks unexamined or
	// degenerate cells.
	misfits := grid.NewCube(nT, nStrikes, nLengths, math.Inf(1))
	locs := make(map[[3]int]MatchResult)

	narrow := !fullSearch && m.params.RunSpeed == "fast" && state.Ran

	bests := make([]thresholdBest, nT)
	for i := 0; i < nT; i++ {
		count := img.Layers.Count(i)
		if count < m.params.MinImagePixels || count > m.params.MaxImagePixels {
			continue
		}
		layer := img.Layers.Layer(i)

		strikeLo, strikeHi := 0, nStrikes-1
		lengthLo, lengthHi := 0, nLengths-1
		if narrow {
			strikeLo, strikeHi = window(state.PrevStrikes[i], m.params.FastWindow, nStrikes)
			lengthLo, lengthHi = window(state.PrevLengths[i], m.params.FastWindow, nLengths)
		}

		best := thresholdBest{misfit: math.Inf(1)}
		for j := strikeLo; j <= strikeHi; j++ {
			for k := lengthLo; k <= lengthHi; k++ {
				templ := m.eng.Rotate(m.set.Mask(k), m.set.Strike(j))
				res, err := m.eng.Correlate(templ, layer)
				if err != nil {
					if errors.Is(err, ErrDegenerateCell) {
						continue
					}
					return nil, err
				}
				misfits.Set(i, j, k, res.Misfit)
				locs[[3]int{i, j, k}] = res
				// Equal misfits let the later cell win, keeping the scan
				// deterministic for repeated runs.
				if res.Misfit <= best.misfit {
					best = thresholdBest{valid: true, strike: j, length: k, loc: res, misfit: res.Misfit}
				}
			}
		}
		if best.valid {
			bests[i] = best
			state.BestStrikes[i] = best.strike
			state.BestLengths[i] = best.length
			state.MinMisfits[i] = best.misfit
		}
	}

	// Final selection across thresholds: smallest misfit under the cap;
	// ties break toward the stricter (higher) threshold by scanning in
	// ascending order with a <= comparison.
	selected := -1
	selMisfit := math.Inf(1)
	for i := 0; i < nT; i++ {
		if !bests[i].valid || bests[i].misfit > m.params.MaxMisfit {
			continue
		}
		if bests[i].misfit <= selMisfit {
			selected = i
			selMisfit = bests[i].misfit
		}
	}
	if selected < 0 {
		return nil, ErrSkipTimestep
	}

	state.BestThreshold = selected
	state.carryForward()
	state.Ran = true

	win := bests[selected]
	match := &Match{
		Set:          m.set,
		ThresholdIdx: selected,
		StrikeIdx:    win.strike,
		LengthIdx:    win.length,
		Misfit:       win.misfit,
		StrikeDeg:    m.set.Strike(win.strike),
		LengthKm:     m.set.Length(win.length),
		Centroid:     m.centroidAt(img, win),
	}

	// Misfit curves at the winning threshold: per strike (min over
	// lengths) and per length (min over strikes), examined cells only.
	for j := 0; j < nStrikes; j++ {
		mv := math.Inf(1)
		for k := 0; k < nLengths; k++ {
			if v := misfits.At(selected, j, k); v < mv {
				mv = v
			}
		}
		if !math.IsInf(mv, 1) {
			match.AzimuthMisfits = append(match.AzimuthMisfits, ValueMisfit{Value: m.set.Strike(j), Misfit: mv})
		}
	}
	for k := 0; k < nLengths; k++ {
		mv := math.Inf(1)
		for j := 0; j < nStrikes; j++ {
			if v := misfits.At(selected, j, k); v < mv {
				mv = v
			}
		}
		if !math.IsInf(mv, 1) {
			match.LengthMisfits = append(match.LengthMisfits, ValueMisfit{Value: m.set.Length(k), Misfit: mv})
		}
	}

	m.estimateUncertainty(match, img)
	match.Rupture = RupturePolygon(match.Centroid, match.StrikeDeg, match.LengthKm,
		m.set.Dip(), m.set.Info(win.length))
	return match, nil
}

// centroidAt back-projects the matched pixel to the geographic grid. The
// correlation result is the placement of the template's reference cell;
// the template centroid offset shifts it to the rupture midpoint.
func (m *Matcher) centroidAt(img *EventImage, best thresholdBest) geo.Coord {
	info := m.set.Info(best.length)
	row := best.loc.Row + info.CentroidRow
	col := best.loc.Col + info.CentroidCol
	if row < 0 {
		row = 0
	}
	if row >= img.Params.NLat {
		row = img.Params.NLat - 1
	}
	if col < 0 {
		col = 0
	}
	if col >= img.Params.NLon {
		col = img.Params.NLon - 1
	}
	return img.Params.CoordAt(row, col)
}

// window clips a +-halfWidth index window to [0, n).
func window(centre, halfWidth, n int) (lo, hi int) {
	lo = centre - halfWidth
	hi = centre + halfWidth
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

// FaultEndpoints extends a centroid along the strike azimuth to the two
// rupture endpoints. Both offsets use the centroid's latitude for the
// longitude conversion so EndpointsToGeometry inverts exactly.
func FaultEndpoints(centroid geo.Coord, strikeDeg, lengthKm float64) (geo.Coord, geo.Coord) {
	half := lengthKm / 2
	end1 := geo.Offset(centroid, strikeDeg, half)
	end2 := geo.Offset(centroid, strikeDeg+180, half)
	return end1, end2
}

// EndpointsToGeometry recovers centroid, length, and azimuth from a pair of
// rupture endpoints.
func EndpointsToGeometry(end1, end2 geo.Coord) (centroid geo.Coord, lengthKm, azimuthDeg float64) {
	centroid = geo.Coord{
		Lat: (end1.Lat + end2.Lat) / 2,
		Lon: (end1.Lon + end2.Lon) / 2,
	}
	lengthKm = geo.DistanceKm(end1, end2)
	azimuthDeg = geo.AzimuthDeg(end2, end1)
	return centroid, lengthKm, azimuthDeg
}

// RupturePolygon builds the rupture vertex list from the fault trace and
// the template's width, dip, and depth range: surface trace at the top
// depth, the down-dip edge offset perpendicular to strike at the bottom
// depth.
func RupturePolygon(centroid geo.Coord, strikeDeg, lengthKm, dipDeg float64, info TemplateInfo) []geo.Coord3D {
	end1, end2 := FaultEndpoints(centroid, strikeDeg, lengthKm)

	dipRad := dipDeg * math.Pi / 180
	horiz := info.WidthKm * math.Cos(dipRad)
	bottom1 := geo.Offset(end1, strikeDeg+90, horiz)
	bottom2 := geo.Offset(end2, strikeDeg+90, horiz)

	return []geo.Coord3D{
		{Lat: end1.Lat, Lon: end1.Lon, Depth: info.DepthTopKm},
		{Lat: end2.Lat, Lon: end2.Lon, Depth: info.DepthTopKm},
		{Lat: bottom2.Lat, Lon: bottom2.Lon, Depth: info.DepthBottomKm},
		{Lat: bottom1.Lat, Lon: bottom1.Lon, Depth: info.DepthBottomKm},
	}
}
