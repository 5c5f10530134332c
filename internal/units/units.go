// Package units is the single place where floating-point kilometres, metres
// and seconds are converted into the integer units consumed by solvers.
package units

import "math"

// Round converts v to the nearest integer, halves away from zero.
func Round(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

// Meters converts kilometres to whole metres.
func Meters(km float64) int64 { return Round(km * 1000) }

// Km converts whole metres back to kilometres.
func Km(meters int64) float64 { return float64(meters) / 1000 }

// MetersPerSecond converts a speed in km/h to m/s.
func MetersPerSecond(kph float64) float64 { return kph / 3.6 }

// TravelSeconds is the whole-second drive time for meters at kph.
// A non-positive speed yields zero.
func TravelSeconds(meters int64, kph float64) int64 {
	mps := MetersPerSecond(kph)
	if mps <= 0 {
		return 0
	}
	return Round(float64(meters) / mps)
}

// EstimateSeconds estimates a drive time in seconds from a distance in km.
func EstimateSeconds(km, kph float64) int64 {
	if kph <= 0 {
		return 0
	}
	return Round(km / kph * 3600)
}
