// Package geo provides the small set of flat-earth geographic conversions
// used throughout the rupture engine: degree/kilometre conversions, great
// circle style distances over short ranges, azimuths, and point-in-polygon
// tests for template applicability regions.
//
// All conversions assume the local flat-earth approximation that is adequate
// for regional rupture footprints (a few hundred km).
package geo

import "math"

// KmPerDegLat is the length of one degree of latitude in kilometres.
const KmPerDegLat = 111.19

// Coord is a geographic coordinate in decimal degrees.
type Coord struct {
	Lat float64
	Lon float64
}

// Coord3D extends Coord with a depth in kilometres (positive down).
type Coord3D struct {
	Lat   float64
	Lon   float64
	Depth float64
}

// LatToKm converts a latitude span in degrees to kilometres.
func LatToKm(degLat float64) float64 {
	return degLat * KmPerDegLat
}

// LonToKm converts a longitude span in degrees to kilometres at the given
// average latitude.
func LonToKm(degLon, avgLat float64) float64 {
	return degLon * KmPerDegLat * math.Cos(avgLat*math.Pi/180)
}

// KmToLat converts a north-south distance in kilometres to degrees latitude.
func KmToLat(km float64) float64 {
	return km / KmPerDegLat
}

// KmToLon converts an east-west distance in kilometres to degrees longitude
// at the given average latitude.
func KmToLon(km, avgLat float64) float64 {
	return km / (KmPerDegLat * math.Cos(avgLat*math.Pi/180))
}

// DistanceKm returns the distance in kilometres between two coordinates.
func DistanceKm(a, b Coord) float64 {
	dy := LatToKm(b.Lat - a.Lat)
	dx := LonToKm(b.Lon-a.Lon, (a.Lat+b.Lat)/2)
	return math.Hypot(dx, dy)
}

// AzimuthDeg returns the azimuth in degrees (clockwise from north, [0, 360))
// of the direction from a to b.
func AzimuthDeg(a, b Coord) float64 {
	dy := LatToKm(b.Lat - a.Lat)
	dx := LonToKm(b.Lon-a.Lon, (a.Lat+b.Lat)/2)
	az := math.Atan2(dx, dy) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az
}

// Offset returns the coordinate reached by moving distKm kilometres from c
// along the given azimuth (degrees clockwise from north).
func Offset(c Coord, azimuthDeg, distKm float64) Coord {
	rad := azimuthDeg * math.Pi / 180
	dN := distKm * math.Cos(rad)
	dE := distKm * math.Sin(rad)
	return Coord{
		Lat: c.Lat + KmToLat(dN),
		Lon: c.Lon + KmToLon(dE, c.Lat),
	}
}

// isLeft reports where point p lies relative to the infinite line through a
// and b: > 0 left, == 0 on the line, < 0 right.
func isLeft(a, b, p Coord) float64 {
	return (b.Lon-a.Lon)*(p.Lat-a.Lat) - (p.Lon-a.Lon)*(b.Lat-a.Lat)
}

// InRegion reports whether p lies inside the closed polygon using the
// winding number rule. An empty polygon contains nothing.
func InRegion(polygon []Coord, p Coord) bool {
	if len(polygon) < 3 {
		return false
	}
	wn := 0
	n := len(polygon)
	for i := 0; i < n; i++ {
		a := polygon[i]
		b := polygon[(i+1)%n]
		if a.Lat <= p.Lat {
			if b.Lat > p.Lat && isLeft(a, b, p) > 0 {
				wn++
			}
		} else {
			if b.Lat <= p.Lat && isLeft(a, b, p) < 0 {
				wn--
			}
		}
	}
	return wn != 0
}

// Centroid returns the arithmetic mean coordinate of the given points.
// It returns the zero Coord for an empty slice.
func Centroid(points []Coord) Coord {
	if len(points) == 0 {
		return Coord{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Coord{Lat: lat / n, Lon: lon / n}
}
