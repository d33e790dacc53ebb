package geom

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry is returned when a geometry violates its structural
// invariants: unclosed or short rings, empty sequences where at least one
// element is required, or non-finite coordinates.
var ErrInvalidGeometry = errors.New("invalid geometry")

type GeometryType string

const (
	POINT              GeometryType = "POINT"
	LINESTRING         GeometryType = "LINESTRING"
	POLYGON            GeometryType = "POLYGON"
	MULTIPOINT         GeometryType = "MULTIPOINT"
	MULTILINESTRING    GeometryType = "MULTILINESTRING"
	MULTIPOLYGON       GeometryType = "MULTIPOLYGON"
	GEOMETRYCOLLECTION GeometryType = "GEOMETRYCOLLECTION"
)

// Geometry is the closed set of spatial values handled by the codec.
// Implementations are immutable once constructed.
type Geometry interface {
	GetGeometryType() GeometryType
	Validate() error

	isGeometry()
}

// deref maps pointer variants onto the value types. A nil pointer yields nil.
func deref(g Geometry) Geometry {
	switch p := g.(type) {
	case *Point:
		if p != nil {
			return *p
		}
	case *LineString:
		if p != nil {
			return *p
		}
	case *Polygon:
		if p != nil {
			return *p
		}
	case *MultiPoint:
		if p != nil {
			return *p
		}
	case *MultiLineString:
		if p != nil {
			return *p
		}
	case *MultiPolygon:
		if p != nil {
			return *p
		}
	case *GeometryCollection:
		if p != nil {
			return *p
		}
	default:
		return g
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeometry, fmt.Sprintf(format, args...))
}

// Point is a single x (longitude) / y (latitude) coordinate pair.
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) GetGeometryType() GeometryType {
	return POINT
}

// Validate rejects NaN and infinite ordinates. NaN is how WKB spells an
// empty point, which has no place in this model.
func (p Point) Validate() error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return invalid("point (%v %v) has non-finite coordinates", p.X, p.Y)
	}
	return nil
}

func (p Point) isGeometry() {}

// LineString is an ordered sequence of at least two points.
type LineString struct {
	points []Point
}

func NewLineString(points ...Point) (LineString, error) {
	l := LineString{points: append([]Point(nil), points...)}
	if err := l.Validate(); err != nil {
		return LineString{}, err
	}
	return l, nil
}

// LineStringFromCoords builds a LineString from [x, y] pairs.
func LineStringFromCoords(coords ...[2]float64) (LineString, error) {
	return NewLineString(pointsOf(coords)...)
}

// Get a copy of the vertices
func (l LineString) Points() []Point {
	return append([]Point(nil), l.points...)
}

func (l LineString) NumPoints() int {
	return len(l.points)
}

func (l LineString) GetGeometryType() GeometryType {
	return LINESTRING
}

func (l LineString) Validate() error {
	if len(l.points) < 2 {
		return invalid("linestring needs at least 2 points, got %d", len(l.points))
	}
	return validatePoints(l.points)
}

func (l LineString) isGeometry() {}

// LinearRing is a closed LineString with at least four points. It is only
// used as a Polygon ring and is not a Geometry on its own.
type LinearRing struct {
	points []Point
}

func NewLinearRing(points ...Point) (LinearRing, error) {
	r := LinearRing{points: append([]Point(nil), points...)}
	if err := r.Validate(); err != nil {
		return LinearRing{}, err
	}
	return r, nil
}

func (r LinearRing) Points() []Point {
	return append([]Point(nil), r.points...)
}

func (r LinearRing) Validate() error {
	if len(r.points) < 4 {
		return invalid("linear ring needs at least 4 points, got %d", len(r.points))
	}
	if err := validatePoints(r.points); err != nil {
		return err
	}
	first, last := r.points[0], r.points[len(r.points)-1]
	if first != last {
		return invalid("linear ring is not closed: first (%v %v) != last (%v %v)", first.X, first.Y, last.X, last.Y)
	}
	return nil
}

// Polygon holds an exterior ring followed by zero or more holes.
type Polygon struct {
	rings []LinearRing
}

func NewPolygon(rings ...LinearRing) (Polygon, error) {
	p := Polygon{rings: append([]LinearRing(nil), rings...)}
	if err := p.Validate(); err != nil {
		return Polygon{}, err
	}
	return p, nil
}

// PolygonFromCoords builds a Polygon from rings of [x, y] pairs, the first
// ring being the exterior.
func PolygonFromCoords(rings ...[][2]float64) (Polygon, error) {
	out := make([]LinearRing, 0, len(rings))
	for i, coords := range rings {
		r, err := NewLinearRing(pointsOf(coords)...)
		if err != nil {
			return Polygon{}, fmt.Errorf("ring %d: %w", i, err)
		}
		out = append(out, r)
	}
	return NewPolygon(out...)
}

func (p Polygon) Rings() []LinearRing {
	return append([]LinearRing(nil), p.rings...)
}

// Exterior ring of the polygon
func (p Polygon) Exterior() LinearRing {
	if len(p.rings) == 0 {
		return LinearRing{}
	}
	return p.rings[0]
}

// Interior rings (holes)
func (p Polygon) Holes() []LinearRing {
	if len(p.rings) < 2 {
		return nil
	}
	return append([]LinearRing(nil), p.rings[1:]...)
}

func (p Polygon) GetGeometryType() GeometryType {
	return POLYGON
}

func (p Polygon) Validate() error {
	if len(p.rings) == 0 {
		return invalid("polygon needs at least one ring")
	}
	for i, r := range p.rings {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	return nil
}

func (p Polygon) isGeometry() {}

func validatePoints(points []Point) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

func pointsOf(coords [][2]float64) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = Point{X: c[0], Y: c[1]}
	}
	return out
}
