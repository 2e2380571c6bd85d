package finder

import (
	"fmt"
	"math"

	"github.com/banshee-data/rupture.report/internal/geo"
)

// Observation is a single per-station peak-amplitude sample for one
// processing window. Filtering mutates the Include and Triggered fields;
// the slice itself is rebuilt every window.
type Observation struct {
	Network  string
	Station  string
	Location string
	Channel  string

	Coord     geo.Coord
	PGA       float64 // peak ground acceleration, cm/s/s
	Timestamp float64 // unix seconds of the peak sample

	Include   bool // false once rejected as noisy/disconnected
	Triggered bool // counted as a valid trigger observation
}

// SNCL returns the dotted station identifier (NET.STA.LOC.CHA).
func (o Observation) SNCL() string {
	return fmt.Sprintf("%s.%s.%s.%s", o.Network, o.Station, o.Location, o.Channel)
}

// Log10PGA returns log10 of the amplitude, or the given floor for
// non-positive amplitudes.
func (o Observation) Log10PGA(floor float64) float64 {
	if o.PGA <= 0 {
		return floor
	}
	return math.Log10(o.PGA)
}

// included returns the observations with Include still set.
func included(obs []Observation) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if o.Include {
			out = append(out, o)
		}
	}
	return out
}

// boundingBox returns the lat/lon extent of the observations expanded by
// border degrees on every side. ok is false when obs is empty.
func boundingBox(obs []Observation, border float64) (minLat, maxLat, minLon, maxLon float64, ok bool) {
	if len(obs) == 0 {
		return 0, 0, 0, 0, false
	}
	minLat, maxLat = obs[0].Coord.Lat, obs[0].Coord.Lat
	minLon, maxLon = obs[0].Coord.Lon, obs[0].Coord.Lon
	for _, o := range obs[1:] {
		minLat = math.Min(minLat, o.Coord.Lat)
		maxLat = math.Max(maxLat, o.Coord.Lat)
		minLon = math.Min(minLon, o.Coord.Lon)
		maxLon = math.Max(maxLon, o.Coord.Lon)
	}
	return minLat - border, maxLat + border, minLon - border, maxLon + border, true
}
