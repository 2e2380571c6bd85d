package finder

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rupture.report/internal/geo"
)

// misfitToLLK maps a correlation misfit onto a Gaussian log likelihood with
// the misfit cap acting as one standard deviation.
func (m *Matcher) misfitToLLK(misfit float64) float64 {
	s := m.params.MaxMisfit
	return -misfit * misfit / (2 * s * s)
}

// estimateUncertainty fills the likelihood curves and one-sigma
// uncertainties on a freshly selected match. Curves are derived from the
// per-parameter misfit minima already collected during the grid search, so
// an excluded cell never contributes.
func (m *Matcher) estimateUncertainty(match *Match, img *EventImage) {
	match.Likelihood = math.Exp(-0.5 * (match.Misfit / m.params.MaxMisfit) * (match.Misfit / m.params.MaxMisfit))

	// Each curve combines the correlation misfit with a Gaussian prior on
	// the deviation from the winning value, so a distant cell with a lucky
	// misfit cannot dominate the spread. The azimuth sigma is in degrees;
	// the length sigma is a fraction of the matched length.
	azSigma := m.params.SigmaAzimuth
	match.AzimuthLLK = make([]ValueLogLikelihood, 0, len(match.AzimuthMisfits))
	for _, vm := range match.AzimuthMisfits {
		dev := foldAzimuth(vm.Value - match.StrikeDeg)
		match.AzimuthLLK = append(match.AzimuthLLK, ValueLogLikelihood{
			Value: vm.Value,
			LLK:   m.misfitToLLK(vm.Misfit) - dev*dev/(2*azSigma*azSigma),
		})
	}
	lenSigma := m.params.SigmaLength * match.LengthKm
	match.LengthLLK = make([]ValueLogLikelihood, 0, len(match.LengthMisfits))
	for _, vm := range match.LengthMisfits {
		dev := vm.Value - match.LengthKm
		match.LengthLLK = append(match.LengthLLK, ValueLogLikelihood{
			Value: vm.Value,
			LLK:   m.misfitToLLK(vm.Misfit) - dev*dev/(2*lenSigma*lenSigma),
		})
	}

	// Azimuth deviations fold into [-90, 90) about the winner since a
	// strike is 180-degree periodic.
	azDev := make([]float64, len(match.AzimuthLLK))
	azW := make([]float64, len(match.AzimuthLLK))
	for i, vl := range match.AzimuthLLK {
		azDev[i] = foldAzimuth(vl.Value - match.StrikeDeg)
		azW[i] = math.Exp(vl.LLK)
	}
	match.AzimuthUncer = weightedSpread(azDev, azW)

	lenDev := make([]float64, len(match.LengthLLK))
	lenW := make([]float64, len(match.LengthLLK))
	for i, vl := range match.LengthLLK {
		lenDev[i] = vl.Value - match.LengthKm
		lenW[i] = math.Exp(vl.LLK)
	}
	match.LengthUncer = weightedSpread(lenDev, lenW)

	// A short rupture carries no usable orientation; report the full
	// strike span of the set instead of a misleadingly tight value.
	if match.LengthKm <= m.params.PointSourceLenKm {
		match.AzimuthUncer = m.set.StrikeSpan()
	}

	// Location spread widens with the residual misfit.
	sigma := m.params.SigmaLatLon * (1 + match.Misfit)
	match.LatUncer = sigma
	match.LonUncer = sigma
	match.CentroidLatPDF, match.CentroidLonPDF = centroidPDFs(match.Centroid, img, sigma)
}

// foldAzimuth maps a strike difference into [-90, 90).
func foldAzimuth(d float64) float64 {
	d = math.Mod(d, 180)
	if d >= 90 {
		d -= 180
	} else if d < -90 {
		d += 180
	}
	return d
}

// weightedSpread is the likelihood-weighted standard deviation of
// deviations from the winning value. Falls back to zero when the weights
// collapse onto a single cell.
func weightedSpread(dev, w []float64) float64 {
	if len(dev) < 2 {
		return 0
	}
	total := 0.0
	for _, x := range w {
		total += x
	}
	if total <= 0 {
		return 0
	}
	mean := stat.Mean(dev, w)
	variance := stat.MomentAbout(2, dev, mean, w)
	if variance <= 0 || math.IsNaN(variance) {
		return 0
	}
	return math.Sqrt(variance)
}

// centroidPDFs samples Gaussian location likelihoods along the image grid
// axes through the matched centroid.
func centroidPDFs(centroid geo.Coord, img *EventImage, sigma float64) (lat, lon []PointLogLikelihood) {
	for r := 0; r < img.Params.NLat; r++ {
		c := img.Params.CoordAt(r, 0)
		d := c.Lat - centroid.Lat
		lat = append(lat, PointLogLikelihood{
			Coord: geo.Coord{Lat: c.Lat, Lon: centroid.Lon},
			LLK:   -d * d / (2 * sigma * sigma),
		})
	}
	for col := 0; col < img.Params.NLon; col++ {
		c := img.Params.CoordAt(0, col)
		d := c.Lon - centroid.Lon
		lon = append(lon, PointLogLikelihood{
			Coord: geo.Coord{Lat: centroid.Lat, Lon: c.Lon},
			LLK:   -d * d / (2 * sigma * sigma),
		})
	}
	return lat, lon
}
