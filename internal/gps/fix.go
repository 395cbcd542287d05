// Package gps defines the raw position reading that flows through the engine.
package gps

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/stuartshay/geo-session-engine/internal/calculator"
)

// Fix is a single GPS reading as delivered by the device location provider
type Fix struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy_m"`
	Timestamp          time.Time `json:"timestamp"`
}

// Location returns the fix position
func (f Fix) Location() calculator.Location {
	return calculator.Location{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Point returns the fix position as an orb point (lon, lat)
func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// DistanceTo returns the great-circle distance in meters between two fixes
func (f Fix) DistanceTo(other Fix) float64 {
	return calculator.Haversine(f.Latitude, f.Longitude, other.Latitude, other.Longitude)
}

// Valid reports whether the coordinates and accuracy are finite and in range
func (f Fix) Valid() bool {
	for _, v := range []float64{f.Latitude, f.Longitude, f.HorizontalAccuracy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return f.Latitude >= -90 && f.Latitude <= 90 &&
		f.Longitude >= -180 && f.Longitude <= 180 &&
		f.HorizontalAccuracy >= 0
}

// Locations extracts the positions of a fix sequence
func Locations(fixes []Fix) []calculator.Location {
	locations := make([]calculator.Location, len(fixes))
	for i, f := range fixes {
		locations[i] = f.Location()
	}
	return locations
}
