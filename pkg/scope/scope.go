package scope

import (
	"errors"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"geosql/pkg/predicate"
)

var (
	// ErrColumnNotSpatial is returned when a spatial operation names a column
	// the model did not declare as spatial.
	ErrColumnNotSpatial = errors.New("column is not a declared spatial column")

	// ErrNoSpatialColumns is returned by New for models without spatial columns.
	ErrNoSpatialColumns = errors.New("model declares no spatial columns")
)

// SpatialQueryable is implemented by models that store geometries.
type SpatialQueryable interface {
	SpatialColumns() []string
}

// Projection is a select-list fragment. NeedsWildcard tells the caller to
// also select "*" when its query has no explicit column list yet.
type Projection struct {
	predicate.Fragment
	NeedsWildcard bool
}

// Scopes binds a model's spatial column allow-list to a dialect Rule.
type Scopes struct {
	rule    dialect.Rule
	columns []string
	allowed map[string]struct{}
}

func New(model SpatialQueryable, rule dialect.Rule) (*Scopes, error) {
	cols := model.SpatialColumns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %T", ErrNoSpatialColumns, model)
	}

	s := &Scopes{
		rule:    rule,
		columns: make([]string, 0, len(cols)),
		allowed: make(map[string]struct{}, len(cols)),
	}
	for _, c := range cols {
		if _, dup := s.allowed[c]; dup {
			continue
		}
		s.allowed[c] = struct{}{}
		s.columns = append(s.columns, c)
	}

	return s, nil
}

func (s *Scopes) Rule() dialect.Rule {
	return s.rule
}

// Columns returns the declared spatial columns in declaration order.
func (s *Scopes) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *Scopes) IsSpatial(column string) bool {
	_, ok := s.allowed[column]
	return ok
}

func (s *Scopes) check(column string) error {
	if !s.IsSpatial(column) {
		return fmt.Errorf("%w: %q", ErrColumnNotSpatial, column)
	}
	return nil
}

func (s *Scopes) Distance(column string, g geom.Geometry, maxDistance float64) ([]predicate.Fragment, error) {
	return s.distance(column, g, maxDistance, false, false)
}

func (s *Scopes) DistanceExcludingSelf(column string, g geom.Geometry, maxDistance float64) ([]predicate.Fragment, error) {
	return s.distance(column, g, maxDistance, false, true)
}

func (s *Scopes) DistanceSphere(column string, g geom.Geometry, maxDistance float64) ([]predicate.Fragment, error) {
	return s.distance(column, g, maxDistance, true, false)
}

func (s *Scopes) DistanceSphereExcludingSelf(column string, g geom.Geometry, maxDistance float64) ([]predicate.Fragment, error) {
	return s.distance(column, g, maxDistance, true, true)
}

func (s *Scopes) distance(column string, g geom.Geometry, maxDistance float64, sphere, excludeSelf bool) ([]predicate.Fragment, error) {
	if err := s.check(column); err != nil {
		return nil, err
	}
	return predicate.Distance(column, g, maxDistance, s.rule, sphere, excludeSelf)
}

func (s *Scopes) DistanceValue(column string, g geom.Geometry) (Projection, error) {
	return s.distanceValue(column, g, false)
}

func (s *Scopes) DistanceSphereValue(column string, g geom.Geometry) (Projection, error) {
	return s.distanceValue(column, g, true)
}

func (s *Scopes) distanceValue(column string, g geom.Geometry, sphere bool) (Projection, error) {
	if err := s.check(column); err != nil {
		return Projection{}, err
	}

	f, err := predicate.DistanceValue(column, g, s.rule, sphere)
	if err != nil {
		return Projection{}, err
	}
	return Projection{Fragment: f, NeedsWildcard: true}, nil
}

// Comparison applies the relation named by relation, in any letter case.
func (s *Scopes) Comparison(column string, g geom.Geometry, relation string) (predicate.Fragment, error) {
	r, err := predicate.ParseRelation(relation)
	if err != nil {
		return predicate.Fragment{}, err
	}
	return s.relate(column, g, r)
}

func (s *Scopes) Within(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Within)
}

func (s *Scopes) Crosses(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Crosses)
}

func (s *Scopes) Contains(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Contains)
}

func (s *Scopes) Disjoint(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Disjoint)
}

func (s *Scopes) Equals(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Equals)
}

func (s *Scopes) Intersects(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Intersects)
}

func (s *Scopes) Overlaps(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Overlaps)
}

// DoesTouch is the Touches relation.
func (s *Scopes) DoesTouch(column string, g geom.Geometry) (predicate.Fragment, error) {
	return s.relate(column, g, predicate.Touches)
}

func (s *Scopes) relate(column string, g geom.Geometry, r predicate.Relation) (predicate.Fragment, error) {
	if err := s.check(column); err != nil {
		return predicate.Fragment{}, err
	}
	return predicate.Topological(column, g, r, s.rule)
}

// InsertValues returns a copy of attrs where every geometry value is replaced
// by its write expression. Geometries are only accepted in spatial columns.
func (s *Scopes) InsertValues(attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for col, v := range attrs {
		g, ok := v.(geom.Geometry)
		if !ok {
			out[col] = v
			continue
		}
		if err := s.check(col); err != nil {
			return nil, err
		}

		f, err := predicate.WriteExpr(g, s.rule)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out[col] = f
	}
	return out, nil
}

// Hydrate decodes the driver payloads held in spatial columns of attrs in
// place. Nil values and values that are already geometries are left alone.
func (s *Scopes) Hydrate(attrs map[string]any) error {
	for _, col := range s.columns {
		v, ok := attrs[col]
		if !ok || v == nil {
			continue
		}

		var payload []byte
		switch v := v.(type) {
		case []byte:
			payload = v
		case string:
			payload = []byte(v)
		case geom.Geometry:
			continue
		default:
			return fmt.Errorf("column %s: %w: unexpected %T value", col, codec.ErrMalformedWKB, v)
		}

		g, err := codec.Decode(payload, s.rule)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		attrs[col] = g
	}
	return nil
}
