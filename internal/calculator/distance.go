// Package calculator provides the geodesic helpers used by the session engine:
// great-circle distances, local tangent plane projection and polygon areas.
package calculator

import (
	"math"
)

const (
	// EarthRadiusM is the Earth's mean radius in meters
	EarthRadiusM = 6371000.0

	// MetersPerDegreeLat is the length of one degree of latitude used by the
	// equirectangular projection
	MetersPerDegreeLat = 111320.0
)

// Location represents a GPS coordinate
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceTo returns the great-circle distance in meters to other
func (l Location) DistanceTo(other Location) float64 {
	return Haversine(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// Haversine calculates the great-circle distance in meters between two points
// on the Earth's surface given their latitudes and longitudes in decimal degrees
//
// Formula:
// a = sin²(Δφ/2) + cos φ1 ⋅ cos φ2 ⋅ sin²(Δλ/2)
// c = 2 ⋅ atan2( √a, √(1−a) )
// d = R ⋅ c
//
// where:
// φ is latitude, λ is longitude, R is earth's radius (6371 km)
// Δφ is the difference in latitude, Δλ is the difference in longitude
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// degreesToRadians converts degrees to radians
func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// PathLength returns the summed leg distance of an ordered path in meters
func PathLength(path []Location) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += path[i-1].DistanceTo(path[i])
	}
	return total
}

// Centroid returns the vertex average of the given points. The zero Location is
// returned for an empty slice.
func Centroid(points []Location) Location {
	if len(points) == 0 {
		return Location{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Latitude
		sumLon += p.Longitude
	}

	n := float64(len(points))
	return Location{Latitude: sumLat / n, Longitude: sumLon / n}
}
