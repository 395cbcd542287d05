package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squarePath(side float64) []Location {
	return []Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: side},
		{Latitude: side, Longitude: side},
		{Latitude: side, Longitude: 0},
	}
}

func TestShoelaceArea(t *testing.T) {
	tests := []struct {
		name     string
		points   []PlanePoint
		expected float64
	}{
		{name: "no points", points: nil, expected: 0},
		{name: "two points", points: []PlanePoint{{0, 0}, {10, 0}}, expected: 0},
		{name: "unit square", points: []PlanePoint{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, expected: 1},
		{name: "clockwise triangle", points: []PlanePoint{{0, 0}, {0, 4}, {3, 0}}, expected: 6},
		{name: "collinear", points: []PlanePoint{{0, 0}, {1, 1}, {2, 2}}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ShoelaceArea(tt.points), 1e-9)
		})
	}
}

func TestPlanarArea_Square(t *testing.T) {
	// 0.001° at the equator is 111.32 m on both axes under the projection
	area := PlanarArea(squarePath(0.001))
	assert.InDelta(t, 12392.14, area, 1.0)
}

func TestPlanarArea_RotationAndReversalInvariant(t *testing.T) {
	path := []Location{
		{Latitude: 40.7360, Longitude: -74.0393},
		{Latitude: 40.7365, Longitude: -74.0390},
		{Latitude: 40.7369, Longitude: -74.0396},
		{Latitude: 40.7366, Longitude: -74.0402},
		{Latitude: 40.7361, Longitude: -74.0400},
	}
	base := PlanarArea(path)
	require.Greater(t, base, 0.0)

	for shift := 1; shift < len(path); shift++ {
		rotated := append(append([]Location{}, path[shift:]...), path[:shift]...)
		assert.InDelta(t, base, PlanarArea(rotated), base*1e-3, "rotation by %d", shift)
	}

	reversed := make([]Location, len(path))
	for i, p := range path {
		reversed[len(path)-1-i] = p
	}
	assert.InDelta(t, base, PlanarArea(reversed), base*1e-3)
}

func TestPlanarArea_TooFewPoints(t *testing.T) {
	assert.Zero(t, PlanarArea(nil))
	assert.Zero(t, PlanarArea(squarePath(0.001)[:2]))
}

func TestPolygonArea_MethodSelection(t *testing.T) {
	t.Run("small polygon stays planar", func(t *testing.T) {
		area, method := PolygonArea(squarePath(0.001))
		assert.Equal(t, AreaPlanar, method)
		assert.InDelta(t, 12392.14, area, 1.0)
	})

	t.Run("wide polygon uses spherical area", func(t *testing.T) {
		path := squarePath(0.2)
		area, method := PolygonArea(path)
		assert.Equal(t, AreaSpherical, method)

		planar := PlanarArea(path)
		assert.InEpsilon(t, planar, area, 0.01)
	})
}

func TestSpan(t *testing.T) {
	latSpan, lonSpan := Span([]Location{
		{Latitude: 1, Longitude: 5},
		{Latitude: -1, Longitude: 7},
		{Latitude: 0.5, Longitude: 6},
	})
	assert.InDelta(t, 2.0, latSpan, 1e-12)
	assert.InDelta(t, 2.0, lonSpan, 1e-12)

	latSpan, lonSpan = Span(nil)
	assert.Zero(t, latSpan)
	assert.Zero(t, lonSpan)
}

func TestRing_Closed(t *testing.T) {
	ring := Ring(squarePath(0.001))
	require.Len(t, ring, 5)
	assert.True(t, ring.Closed())
	assert.Equal(t, 0.001, ring[1][0], "orb points are lon, lat")
}

func TestMetersPerDegreeLon(t *testing.T) {
	assert.InDelta(t, MetersPerDegreeLat, MetersPerDegreeLon(0), 1e-9)
	assert.InDelta(t, MetersPerDegreeLat/2, MetersPerDegreeLon(60), 1e-6)
}

func BenchmarkPlanarArea(b *testing.B) {
	path := make([]Location, 64)
	for i := range path {
		path[i] = Location{Latitude: float64(i%8) * 0.0001, Longitude: float64(i/8) * 0.0001}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PlanarArea(path)
	}
}
