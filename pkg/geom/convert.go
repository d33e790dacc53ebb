package geom

import (
	"fmt"

	gogeom "github.com/twpayne/go-geom"
)

// ToT converts a validated Geometry into its go-geom representation with an
// XY layout. The encoders in go-geom/encoding operate on the result.
func ToT(g Geometry) (gogeom.T, error) {
	g = deref(g)
	if g == nil {
		return nil, invalid("nil geometry")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return toT(g)
}

func toT(g Geometry) (gogeom.T, error) {
	switch g := deref(g).(type) {
	case Point:
		return gogeom.NewPointFlat(gogeom.XY, []float64{g.X, g.Y}), nil

	case LineString:
		return gogeom.NewLineStringFlat(gogeom.XY, flatten(nil, g.points)), nil

	case Polygon:
		flat, ends := flattenRings(nil, g.rings)
		return gogeom.NewPolygonFlat(gogeom.XY, flat, ends), nil

	case MultiPoint:
		return gogeom.NewMultiPointFlat(gogeom.XY, flatten(nil, g.points)), nil

	case MultiLineString:
		var flat []float64
		ends := make([]int, 0, len(g.lines))
		for _, l := range g.lines {
			flat = flatten(flat, l.points)
			ends = append(ends, len(flat))
		}
		return gogeom.NewMultiLineStringFlat(gogeom.XY, flat, ends), nil

	case MultiPolygon:
		var flat []float64
		endss := make([][]int, 0, len(g.polygons))
		for _, p := range g.polygons {
			var ends []int
			flat, ends = flattenRings(flat, p.rings)
			endss = append(endss, ends)
		}
		return gogeom.NewMultiPolygonFlat(gogeom.XY, flat, endss), nil

	case GeometryCollection:
		gc := gogeom.NewGeometryCollection()
		for i, member := range g.geoms {
			t, err := toT(member)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			if err := gc.Push(t); err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
		}
		return gc, nil
	}

	return nil, invalid("unsupported geometry %T", g)
}

// FromT converts a go-geom value back into a Geometry. Z and M ordinates are
// dropped. The result is validated, so empty or degenerate inputs fail with
// ErrInvalidGeometry.
func FromT(t gogeom.T) (Geometry, error) {
	switch t := t.(type) {
	case *gogeom.Point:
		if t.Empty() {
			return nil, invalid("empty point")
		}
		p, err := pointFromCoord(t.Coords())
		if err != nil {
			return nil, err
		}
		return p, nil

	case *gogeom.LineString:
		points, err := pointsFromCoords(t.Coords())
		if err != nil {
			return nil, err
		}
		return NewLineString(points...)

	case *gogeom.Polygon:
		return polygonFromT(t)

	case *gogeom.MultiPoint:
		points := make([]Point, 0, t.NumPoints())
		for i := 0; i < t.NumPoints(); i++ {
			p, err := pointFromCoord(t.Point(i).Coords())
			if err != nil {
				return nil, fmt.Errorf("point %d: %w", i, err)
			}
			points = append(points, p)
		}
		return NewMultiPoint(points...)

	case *gogeom.MultiLineString:
		lines := make([]LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			points, err := pointsFromCoords(t.LineString(i).Coords())
			if err != nil {
				return nil, fmt.Errorf("linestring %d: %w", i, err)
			}
			l, err := NewLineString(points...)
			if err != nil {
				return nil, fmt.Errorf("linestring %d: %w", i, err)
			}
			lines = append(lines, l)
		}
		return NewMultiLineString(lines...)

	case *gogeom.MultiPolygon:
		polygons := make([]Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := polygonFromT(t.Polygon(i))
			if err != nil {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			polygons = append(polygons, p)
		}
		return NewMultiPolygon(polygons...)

	case *gogeom.GeometryCollection:
		members := make([]Geometry, 0, t.NumGeoms())
		for i, child := range t.Geoms() {
			g, err := FromT(child)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			members = append(members, g)
		}
		return NewGeometryCollection(members...)
	}

	return nil, invalid("unsupported go-geom type %T", t)
}

func polygonFromT(t *gogeom.Polygon) (Polygon, error) {
	rings := make([]LinearRing, 0, t.NumLinearRings())
	for i := 0; i < t.NumLinearRings(); i++ {
		points, err := pointsFromCoords(t.LinearRing(i).Coords())
		if err != nil {
			return Polygon{}, fmt.Errorf("ring %d: %w", i, err)
		}
		r, err := NewLinearRing(points...)
		if err != nil {
			return Polygon{}, fmt.Errorf("ring %d: %w", i, err)
		}
		rings = append(rings, r)
	}
	return NewPolygon(rings...)
}

func pointFromCoord(c gogeom.Coord) (Point, error) {
	if len(c) < 2 {
		return Point{}, invalid("coordinate has %d ordinates", len(c))
	}
	p := Point{X: c[0], Y: c[1]}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

func pointsFromCoords(coords []gogeom.Coord) ([]Point, error) {
	out := make([]Point, 0, len(coords))
	for i, c := range coords {
		p, err := pointFromCoord(c)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func flatten(dst []float64, points []Point) []float64 {
	for _, p := range points {
		dst = append(dst, p.X, p.Y)
	}
	return dst
}

func flattenRings(dst []float64, rings []LinearRing) ([]float64, []int) {
	ends := make([]int, 0, len(rings))
	for _, r := range rings {
		dst = flatten(dst, r.points)
		ends = append(ends, len(dst))
	}
	return dst, ends
}
