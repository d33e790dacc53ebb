package geom

import "math"

// Equal reports whether a and b have the same type and structure and every
// coordinate pair differs by at most tol. Pointer and value forms of the
// same geometry compare equal.
func Equal(a, b Geometry, tol float64) bool {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch a := a.(type) {
	case Point:
		other, ok := b.(Point)
		return ok && pointEqual(a, other, tol)
	case LineString:
		other, ok := b.(LineString)
		return ok && pointsEqual(a.points, other.points, tol)
	case Polygon:
		other, ok := b.(Polygon)
		return ok && polygonEqual(a, other, tol)
	case MultiPoint:
		other, ok := b.(MultiPoint)
		return ok && pointsEqual(a.points, other.points, tol)
	case MultiLineString:
		other, ok := b.(MultiLineString)
		if !ok || len(a.lines) != len(other.lines) {
			return false
		}
		for i := range a.lines {
			if !pointsEqual(a.lines[i].points, other.lines[i].points, tol) {
				return false
			}
		}
		return true
	case MultiPolygon:
		other, ok := b.(MultiPolygon)
		if !ok || len(a.polygons) != len(other.polygons) {
			return false
		}
		for i := range a.polygons {
			if !polygonEqual(a.polygons[i], other.polygons[i], tol) {
				return false
			}
		}
		return true
	case GeometryCollection:
		other, ok := b.(GeometryCollection)
		if !ok || len(a.geoms) != len(other.geoms) {
			return false
		}
		for i := range a.geoms {
			if !Equal(a.geoms[i], other.geoms[i], tol) {
				return false
			}
		}
		return true
	}

	return false
}

func pointEqual(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func pointsEqual(a, b []Point, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointEqual(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func polygonEqual(a, b Polygon, tol float64) bool {
	if len(a.rings) != len(b.rings) {
		return false
	}
	for i := range a.rings {
		if !pointsEqual(a.rings[i].points, b.rings[i].points, tol) {
			return false
		}
	}
	return true
}
