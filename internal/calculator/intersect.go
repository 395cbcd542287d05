package calculator

// SelfIntersects reports whether any two non-adjacent edges of the closed ring
// through points cross. Edges that only touch or run collinear are not counted,
// so a walker retracing a few meters of their own path still closes.
func SelfIntersects(points []PlanePoint) bool {
	n := len(points)
	if n < 4 {
		return false
	}

	for i := 0; i < n; i++ {
		a1, a2 := points[i], points[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // shares the ring's closing vertex
			}
			b1, b2 := points[j], points[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// PathSelfIntersects projects the path around its first point and checks the ring
func PathSelfIntersects(path []Location) bool {
	if len(path) < 4 {
		return false
	}
	return SelfIntersects(Project(path[0], path))
}

func segmentsCross(p1, p2, q1, q2 PlanePoint) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)
	return d1*d2 < 0 && d3*d4 < 0
}

// orientation is the sign of the cross product (b-a) x (c-a)
func orientation(a, b, c PlanePoint) float64 {
	v := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
