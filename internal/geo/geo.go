// Package geo provides great-circle distances and distance matrices over
// WGS-84 coordinates.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for every distance in the service.
const EarthRadiusKm = 6371.0

// Point is a coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is finite and inside the WGS-84 ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// LatLng converts p to an s2 LatLng.
func (p Point) LatLng() s2.LatLng { return s2.LatLngFromDegrees(p.Lat, p.Lng) }

// FromLatLng converts an s2 LatLng back to degrees.
func FromLatLng(ll s2.LatLng) Point {
	return Point{Lat: ll.Lat.Degrees(), Lng: ll.Lng.Degrees()}
}

// Haversine returns the great-circle distance between a and b in kilometres.
// Out-of-range inputs are not rejected; the formula is applied as-is.
func Haversine(a, b Point) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadiusKm
}
