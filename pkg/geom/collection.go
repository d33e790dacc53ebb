package geom

import "fmt"

type MultiPoint struct {
	points []Point
}

func NewMultiPoint(points ...Point) (MultiPoint, error) {
	m := MultiPoint{points: append([]Point(nil), points...)}
	if err := m.Validate(); err != nil {
		return MultiPoint{}, err
	}
	return m, nil
}

func (m MultiPoint) Points() []Point {
	return append([]Point(nil), m.points...)
}

func (m MultiPoint) GetGeometryType() GeometryType {
	return MULTIPOINT
}

func (m MultiPoint) Validate() error {
	if len(m.points) == 0 {
		return invalid("multipoint needs at least one point")
	}
	return validatePoints(m.points)
}

func (m MultiPoint) isGeometry() {}

type MultiLineString struct {
	lines []LineString
}

func NewMultiLineString(lines ...LineString) (MultiLineString, error) {
	m := MultiLineString{lines: append([]LineString(nil), lines...)}
	if err := m.Validate(); err != nil {
		return MultiLineString{}, err
	}
	return m, nil
}

func (m MultiLineString) LineStrings() []LineString {
	return append([]LineString(nil), m.lines...)
}

func (m MultiLineString) GetGeometryType() GeometryType {
	return MULTILINESTRING
}

func (m MultiLineString) Validate() error {
	if len(m.lines) == 0 {
		return invalid("multilinestring needs at least one linestring")
	}
	for i, l := range m.lines {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("linestring %d: %w", i, err)
		}
	}
	return nil
}

func (m MultiLineString) isGeometry() {}

type MultiPolygon struct {
	polygons []Polygon
}

func NewMultiPolygon(polygons ...Polygon) (MultiPolygon, error) {
	m := MultiPolygon{polygons: append([]Polygon(nil), polygons...)}
	if err := m.Validate(); err != nil {
		return MultiPolygon{}, err
	}
	return m, nil
}

func (m MultiPolygon) Polygons() []Polygon {
	return append([]Polygon(nil), m.polygons...)
}

func (m MultiPolygon) GetGeometryType() GeometryType {
	return MULTIPOLYGON
}

func (m MultiPolygon) Validate() error {
	if len(m.polygons) == 0 {
		return invalid("multipolygon needs at least one polygon")
	}
	for i, p := range m.polygons {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("polygon %d: %w", i, err)
		}
	}
	return nil
}

func (m MultiPolygon) isGeometry() {}

// GeometryCollection is a heterogeneous, possibly nested, list of geometries.
type GeometryCollection struct {
	geoms []Geometry
}

func NewGeometryCollection(geoms ...Geometry) (GeometryCollection, error) {
	members := make([]Geometry, len(geoms))
	for i, g := range geoms {
		members[i] = deref(g)
	}

	c := GeometryCollection{geoms: members}
	if err := c.Validate(); err != nil {
		return GeometryCollection{}, err
	}
	return c, nil
}

func (c GeometryCollection) Geometries() []Geometry {
	return append([]Geometry(nil), c.geoms...)
}

func (c GeometryCollection) GetGeometryType() GeometryType {
	return GEOMETRYCOLLECTION
}

func (c GeometryCollection) Validate() error {
	if len(c.geoms) == 0 {
		return invalid("geometrycollection needs at least one member")
	}
	for i, g := range c.geoms {
		g = deref(g)
		if g == nil {
			return invalid("member %d is nil", i)
		}
		if err := g.Validate(); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}
	return nil
}

func (c GeometryCollection) isGeometry() {}
