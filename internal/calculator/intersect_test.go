package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelfIntersects(t *testing.T) {
	tests := []struct {
		name     string
		points   []PlanePoint
		expected bool
	}{
		{
			name:     "square",
			points:   []PlanePoint{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			expected: false,
		},
		{
			name:     "figure eight",
			points:   []PlanePoint{{0, 0}, {10, 10}, {10, 0}, {0, 10}},
			expected: true,
		},
		{
			name:     "triangle",
			points:   []PlanePoint{{0, 0}, {10, 0}, {5, 5}},
			expected: false,
		},
		{
			name:     "collinear retrace is not a crossing",
			points:   []PlanePoint{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 5}},
			expected: false,
		},
		{
			name:     "closing edge crosses the second edge",
			points:   []PlanePoint{{0, 0}, {0, 10}, {10, 10}, {10, 20}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelfIntersects(tt.points))
		})
	}
}

func TestPathSelfIntersects(t *testing.T) {
	bowtie := []Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0.001, Longitude: 0.001},
		{Latitude: 0, Longitude: 0.001},
		{Latitude: 0.001, Longitude: 0},
	}
	assert.True(t, PathSelfIntersects(bowtie))
	assert.False(t, PathSelfIntersects(bowtie[:3]))
}

func BenchmarkPathSelfIntersects(b *testing.B) {
	// simple 64-vertex square loop, worst case for the pairwise scan
	path := make([]Location, 0, 64)
	for i := 0; i < 16; i++ {
		path = append(path, Location{Latitude: 0, Longitude: float64(i) * 0.0001})
	}
	for i := 0; i < 16; i++ {
		path = append(path, Location{Latitude: float64(i) * 0.0001, Longitude: 0.0016})
	}
	for i := 0; i < 16; i++ {
		path = append(path, Location{Latitude: 0.0016, Longitude: 0.0016 - float64(i)*0.0001})
	}
	for i := 0; i < 16; i++ {
		path = append(path, Location{Latitude: 0.0016 - float64(i)*0.0001, Longitude: 0})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PathSelfIntersects(path)
	}
}
