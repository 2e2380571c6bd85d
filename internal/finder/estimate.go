package finder

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
)

// Rupture length to moment magnitude regressions.
const (
	wcIntercept = 4.38
	wcSlope     = 1.49

	blaserIntercept = 2.44
	blaserSlope     = 0.59

	magUncerFloor = 0.5
)

// Simple point-source attenuation coefficients for the amplitude
// regression, log10 PGA in cm/s/s against hypocentral distance in km.
// Separate terms for P and S arrivals.
const (
	attPBias  = -1.36
	attPSlope = 0.93
	attDecay  = 1.70
	attNear   = 9.0

	attSBias  = -1.04
	attSSlope = 0.95
)

// Estimate is the scalar source summary derived from one match.
type Estimate struct {
	Mag        float64
	MagUncer   float64
	MagFromReg bool // amplitude regression used instead of rupture length

	OriginTime      time.Time
	OriginTimeUncer float64
	OriginFrozen    bool
}

// Estimator turns a geometric match and the contributing observations into
// magnitude and origin time. One estimator serves all events; it holds no
// per-event state.
type Estimator struct {
	params config.Params
}

// NewEstimator builds an estimator from frozen runtime parameters.
func NewEstimator(params config.Params) *Estimator {
	return &Estimator{params: params}
}

// MagnitudeFromLength converts a rupture length to magnitude using the
// configured regression. Option 0 reads the template's intrinsic
// magnitude; the length argument is ignored in that case.
func (e *Estimator) MagnitudeFromLength(info TemplateInfo, lengthKm float64) float64 {
	switch e.params.MagOption {
	case config.MagFromTemplate:
		return info.Mag
	case config.MagBlaser:
		return (math.Log10(lengthKm) + blaserIntercept) / blaserSlope
	default:
		return wcIntercept + wcSlope*math.Log10(lengthKm)
	}
}

// magSlope is dM/dlog10(L) for the active regression, used to propagate
// length uncertainty into magnitude.
func (e *Estimator) magSlope() float64 {
	if e.params.MagOption == config.MagBlaser {
		return 1 / blaserSlope
	}
	return wcSlope
}

// Magnitude estimates event magnitude from a match. Small ruptures carry
// no length signal, so below the regression threshold the estimate falls
// back to an amplitude regression over the triggered stations when enough
// of them are available.
func (e *Estimator) Magnitude(match *Match, obs []Observation, originTime time.Time, now time.Time) Estimate {
	est := Estimate{
		Mag:      e.MagnitudeFromLength(match.Set.Info(match.LengthIdx), match.LengthKm),
		MagUncer: e.magUncertainty(match),
	}

	if est.Mag >= e.params.MagRegressionThresh || e.params.MagOption == config.MagFromTemplate {
		return est
	}
	mag, uncer, ok := e.regressMagnitude(match.Centroid, obs, originTime, now)
	if ok {
		est.Mag = mag
		est.MagUncer = uncer
		est.MagFromReg = true
	}
	return est
}

// magUncertainty propagates the one-sigma length spread through the
// regression slope, floored at a fixed minimum.
func (e *Estimator) magUncertainty(match *Match) float64 {
	if match.LengthUncer <= 0 || match.LengthKm <= 0 {
		return magUncerFloor
	}
	dlog := math.Log10((match.LengthKm + match.LengthUncer) / match.LengthKm)
	if dlog < e.params.DLogLength {
		dlog = e.params.DLogLength
	}
	u := e.magSlope() * dlog
	if u < magUncerFloor {
		u = magUncerFloor
	}
	return u
}

// ampSample is one station's contribution to the amplitude regression.
type ampSample struct {
	log10PGA float64
	distKm   float64
	isS      bool
}

// regressMagnitude grid-searches a point-source magnitude that minimises
// the weighted misfit between observed and predicted log amplitudes.
// S arrivals carry more weight than P; once enough S arrivals exist the
// P observations are dropped entirely.
func (e *Estimator) regressMagnitude(centroid geo.Coord, obs []Observation, originTime time.Time, now time.Time) (mag, uncer float64, ok bool) {
	var samples []ampSample
	sCount := 0
	for _, o := range obs {
		if !o.Include || !o.Triggered {
			continue
		}
		d := geo.DistanceKm(o.Coord, centroid)
		hyp := math.Hypot(d, e.params.DefaultDepthKm)
		isS := !e.isPPhase(d, originTime, now)
		if isS {
			sCount++
		}
		samples = append(samples, ampSample{
			log10PGA: o.Log10PGA(e.params.MinLog10PGA),
			distKm:   hyp,
			isS:      isS,
		})
	}
	if sCount < e.params.RegressionMinSSta {
		return 0, 0, false
	}
	sOnly := sCount >= e.params.RegressionSOnlyCount

	bestMag, bestRes := 0.0, math.Inf(1)
	for m := e.params.RegressionMinMag; m <= e.params.RegressionMaxMag+1e-9; m += e.params.RegressionMagStep {
		res, wsum := 0.0, 0.0
		for _, s := range samples {
			if sOnly && !s.isS {
				continue
			}
			w := 1.0
			pred := attPBias + attPSlope*m - attDecay*math.Log10(s.distKm+attNear)
			if s.isS {
				w = e.params.RegressionSWeight
				pred = attSBias + attSSlope*m - attDecay*math.Log10(s.distKm+attNear)
			}
			d := s.log10PGA - pred
			res += w * d * d
			wsum += w
		}
		if wsum == 0 {
			continue
		}
		res /= wsum
		if res < bestRes {
			bestRes = res
			bestMag = m
		}
	}
	if math.IsInf(bestRes, 1) {
		return 0, 0, false
	}
	uncer = magUncerFloor + math.Sqrt(bestRes)/2
	return bestMag, uncer, true
}

// isPPhase reports whether a station at epicentral distance d would still
// be inside the P wavefront at time now. Before an origin time exists all
// arrivals are treated as S.
func (e *Estimator) isPPhase(distKm float64, originTime, now time.Time) bool {
	if originTime.IsZero() {
		return false
	}
	elapsed := now.Sub(originTime).Seconds()
	return distKm > elapsed*e.params.SWaveVelocity
}

// OriginTime back-projects trigger times to the source using the P wave
// speed. Stations closer than the minimum distance see too much rupture
// finiteness to be useful and are skipped. Once the rupture has grown past
// the freeze length the previous value is kept.
func (e *Estimator) OriginTime(match *Match, obs []Observation, prev Estimate) Estimate {
	est := prev
	if !prev.OriginTime.IsZero() && match.LengthKm > e.params.MaxLenForOriginKm {
		est.OriginFrozen = true
		return est
	}

	var candidates []float64
	for _, o := range obs {
		if !o.Include || !o.Triggered || o.Timestamp == 0 {
			continue
		}
		d := geo.DistanceKm(o.Coord, match.Centroid)
		if d < e.params.OriginTimeMinDistKm {
			continue
		}
		hyp := math.Hypot(d, e.params.DefaultDepthKm)
		candidates = append(candidates, o.Timestamp-hyp/e.params.PWaveVelocity)
	}
	if len(candidates) == 0 {
		return est
	}

	sort.Float64s(candidates)
	med := stat.Quantile(0.5, stat.Empirical, candidates, nil)
	est.OriginTime = time.Unix(0, int64(med*1e9))
	if len(candidates) > 1 {
		est.OriginTimeUncer = stat.StdDev(candidates, nil)
	}
	if est.OriginTimeUncer == 0 {
		est.OriginTimeUncer = config.DefaultOriginTimeUncer
	}
	return est
}
