package predicate

import (
	"errors"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"regexp"
)

var (
	// ErrUnknownRelation is returned for topological operators outside the
	// Relation enumeration.
	ErrUnknownRelation = errors.New("unknown spatial relation")

	// ErrInvalidColumn is returned when a column reference is not a plain,
	// optionally table-qualified, identifier.
	ErrInvalidColumn = errors.New("invalid column reference")
)

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Fragment is a SQL snippet with its positional '?' bindings, in order.
// Bindings only ever hold string or float64 values.
type Fragment struct {
	SQL      string `json:"sql"`
	Bindings []any  `json:"bindings"`
}

// Distance builds "distance <= maxDistance" filters. With excludeSelf a
// second fragment drops rows whose geometry coincides with g.
func Distance(column string, g geom.Geometry, maxDistance float64, rule dialect.Rule, sphere, excludeSelf bool) ([]Fragment, error) {
	call, text, err := distanceCall(column, g, rule, sphere)
	if err != nil {
		return nil, err
	}

	out := []Fragment{{
		SQL:      call + " <= ?",
		Bindings: []any{text, maxDistance},
	}}

	if excludeSelf {
		out = append(out, Fragment{
			SQL:      call + " != 0",
			Bindings: []any{text},
		})
	}

	return out, nil
}

// DistanceValue builds a "distance" projection. The caller keeps its base
// column selection alongside it.
func DistanceValue(column string, g geom.Geometry, rule dialect.Rule, sphere bool) (Fragment, error) {
	call, text, err := distanceCall(column, g, rule, sphere)
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{
		SQL:      call + " as distance",
		Bindings: []any{text},
	}, nil
}

// Topological builds an ST_<Relation>(column, geometry) filter.
func Topological(column string, g geom.Geometry, relation Relation, rule dialect.Rule) (Fragment, error) {
	if !relation.valid() {
		return Fragment{}, fmt.Errorf("%w: %v", ErrUnknownRelation, relation)
	}
	if err := checkColumn(column); err != nil {
		return Fragment{}, err
	}

	text, err := codec.EncodeForWrite(g, rule)
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{
		SQL:      fmt.Sprintf("ST_%s(%s%s, %s)", relation, rule.QuoteIdentifier(column), rule.ColumnCastSuffix, geomFromText(rule)),
		Bindings: []any{text},
	}, nil
}

// WriteExpr is the value expression used for INSERT and UPDATE statements.
func WriteExpr(g geom.Geometry, rule dialect.Rule) (Fragment, error) {
	text, err := codec.EncodeForWrite(g, rule)
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{
		SQL:      geomFromText(rule),
		Bindings: []any{text},
	}, nil
}

func distanceCall(column string, g geom.Geometry, rule dialect.Rule, sphere bool) (string, string, error) {
	if err := checkColumn(column); err != nil {
		return "", "", err
	}

	fn, err := rule.DistanceFn(sphere)
	if err != nil {
		return "", "", err
	}

	text, err := codec.EncodeForWrite(g, rule)
	if err != nil {
		return "", "", err
	}

	return fmt.Sprintf("%s(%s%s, %s)", fn, column, rule.ColumnCastSuffix, geomFromText(rule)), text, nil
}

func geomFromText(rule dialect.Rule) string {
	return rule.GeomFromTextFn + "(?)"
}

func checkColumn(column string) error {
	if !columnPattern.MatchString(column) {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
	}
	return nil
}
