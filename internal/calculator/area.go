package calculator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MaxPlanarSpanDegrees is the largest latitude or longitude extent for which the
// equirectangular projection is used. Wider polygons fall back to a spherical area.
const MaxPlanarSpanDegrees = 0.1

// AreaMethod names the formula that produced an area figure
type AreaMethod string

// Area methods
const (
	AreaPlanar    AreaMethod = "planar"
	AreaSpherical AreaMethod = "spherical"
)

// PlanePoint is a position on the local tangent plane, in meters east (X) and
// north (Y) of the projection origin
type PlanePoint struct {
	X float64
	Y float64
}

// MetersPerDegreeLon returns the length of one degree of longitude at the given latitude
func MetersPerDegreeLon(latitude float64) float64 {
	return MetersPerDegreeLat * math.Cos(degreesToRadians(latitude))
}

// Project maps points onto an equirectangular plane centered on origin.
// The approximation holds for extents up to MaxPlanarSpanDegrees.
func Project(origin Location, points []Location) []PlanePoint {
	lonScale := MetersPerDegreeLon(origin.Latitude)

	projected := make([]PlanePoint, len(points))
	for i, p := range points {
		projected[i] = PlanePoint{
			X: (p.Longitude - origin.Longitude) * lonScale,
			Y: (p.Latitude - origin.Latitude) * MetersPerDegreeLat,
		}
	}
	return projected
}

// ShoelaceArea returns the absolute area enclosed by the cyclic point sequence.
// Fewer than three points enclose nothing.
func ShoelaceArea(points []PlanePoint) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// PlanarArea projects the path around its first point and applies the shoelace formula
func PlanarArea(path []Location) float64 {
	if len(path) < 3 {
		return 0
	}
	return ShoelaceArea(Project(path[0], path))
}

// SphericalArea returns the area of the path treated as a ring on the sphere
func SphericalArea(path []Location) float64 {
	if len(path) < 3 {
		return 0
	}
	return math.Abs(geo.Area(Ring(path)))
}

// Span returns the latitude and longitude extent of the points in degrees
func Span(points []Location) (latSpan, lonSpan float64) {
	if len(points) == 0 {
		return 0, 0
	}

	minLat, maxLat := points[0].Latitude, points[0].Latitude
	minLon, maxLon := points[0].Longitude, points[0].Longitude
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Latitude)
		maxLat = math.Max(maxLat, p.Latitude)
		minLon = math.Min(minLon, p.Longitude)
		maxLon = math.Max(maxLon, p.Longitude)
	}
	return maxLat - minLat, maxLon - minLon
}

// PolygonArea picks the planar shoelace area when the path is small enough for the
// local projection and the spherical area otherwise, reporting which one was used
func PolygonArea(path []Location) (float64, AreaMethod) {
	latSpan, lonSpan := Span(path)
	if latSpan > MaxPlanarSpanDegrees || lonSpan > MaxPlanarSpanDegrees {
		return SphericalArea(path), AreaSpherical
	}
	return PlanarArea(path), AreaPlanar
}

// Ring converts the path into a closed orb.Ring (lon, lat order)
func Ring(path []Location) orb.Ring {
	ring := make(orb.Ring, 0, len(path)+1)
	for _, p := range path {
		ring = append(ring, orb.Point{p.Longitude, p.Latitude})
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return ring
}
