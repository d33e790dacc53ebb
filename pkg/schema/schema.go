// Package schema renders the spatial DDL statements that differ between the
// supported databases: column types, spatial indexes and the extension that
// provides the spatial functions.
package schema

import (
	"errors"
	"fmt"
	"geosql/pkg/dialect"
	"strings"
)

// ErrUnsupported is returned for DDL a dialect has no statement for.
var ErrUnsupported = errors.New("unsupported spatial ddl")

// Kind is a spatial column type.
type Kind int

const (
	Geometry Kind = iota
	Geography
	Point
	LineString
	Polygon
	MultiPoint
	MultiLineString
	MultiPolygon
	GeometryCollection
)

var kindNames = map[Kind]string{
	Geometry:           "GEOMETRY",
	Geography:          "GEOGRAPHY",
	Point:              "POINT",
	LineString:         "LINESTRING",
	Polygon:            "POLYGON",
	MultiPoint:         "MULTIPOINT",
	MultiLineString:    "MULTILINESTRING",
	MultiPolygon:       "MULTIPOLYGON",
	GeometryCollection: "GEOMETRYCOLLECTION",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the type keyword in any letter case. "GEOMCOLLECTION",
// MySQL's short spelling, is accepted too.
func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "GEOMCOLLECTION" {
		return GeometryCollection, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: column type %q", ErrUnsupported, s)
}

// ColumnType returns the column type for kind. A non-zero srid constrains
// the column where the dialect allows it.
func ColumnType(rule dialect.Rule, kind Kind, srid int) (string, error) {
	name, ok := kindNames[kind]
	if !ok {
		return "", fmt.Errorf("%w: column type %v", ErrUnsupported, kind)
	}

	switch rule.Name {
	case dialect.MySQL:
		if kind == Geography {
			return "", fmt.Errorf("%w: %s has no geography type", ErrUnsupported, rule.Name)
		}
		if srid != 0 {
			return fmt.Sprintf("%s SRID %d", name, srid), nil
		}
		return name, nil

	case dialect.Postgres:
		if kind == Geography {
			return "GEOGRAPHY", nil
		}
		if kind == Geometry {
			if srid != 0 {
				return fmt.Sprintf("GEOMETRY(GEOMETRY, %d)", srid), nil
			}
			return "GEOMETRY", nil
		}
		if srid != 0 {
			return fmt.Sprintf("GEOMETRY(%s, %d)", name, srid), nil
		}
		return fmt.Sprintf("GEOMETRY(%s)", name), nil

	case dialect.DuckDB:
		// the spatial extension has a single GEOMETRY type
		if kind == Geography {
			return "", fmt.Errorf("%w: %s has no geography type", ErrUnsupported, rule.Name)
		}
		return "GEOMETRY", nil
	}

	return "", fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}

// AddColumn renders ALTER TABLE ... ADD COLUMN for a spatial column.
func AddColumn(rule dialect.Rule, table, column string, kind Kind, srid int) (string, error) {
	typ, err := ColumnType(rule, kind, srid)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		rule.QuoteIdentifier(table), rule.QuoteIdentifier(column), typ), nil
}

// SpatialIndex renders the statement creating a spatial index on column.
func SpatialIndex(rule dialect.Rule, table, index, column string) (string, error) {
	t, i, c := rule.QuoteIdentifier(table), rule.QuoteIdentifier(index), rule.QuoteIdentifier(column)

	switch rule.Name {
	case dialect.MySQL:
		return fmt.Sprintf("ALTER TABLE %s ADD SPATIAL INDEX %s(%s)", t, i, c), nil
	case dialect.Postgres:
		return fmt.Sprintf("CREATE INDEX %s ON %s USING GIST (%s)", i, t, c), nil
	case dialect.DuckDB:
		return fmt.Sprintf("CREATE INDEX %s ON %s USING RTREE (%s)", i, t, c), nil
	}
	return "", fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}

// DropSpatialIndex renders the statement removing a spatial index.
func DropSpatialIndex(rule dialect.Rule, table, index string) (string, error) {
	switch rule.Name {
	case dialect.MySQL:
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s",
			rule.QuoteIdentifier(table), rule.QuoteIdentifier(index)), nil
	case dialect.Postgres, dialect.DuckDB:
		return fmt.Sprintf("DROP INDEX %s", rule.QuoteIdentifier(index)), nil
	}
	return "", fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}

// EnableExtension returns the statements that make the spatial functions
// available. MySQL ships them built in.
func EnableExtension(rule dialect.Rule) ([]string, error) {
	switch rule.Name {
	case dialect.Postgres:
		return []string{"CREATE EXTENSION postgis"}, nil
	case dialect.DuckDB:
		return []string{"INSTALL spatial", "LOAD spatial"}, nil
	case dialect.MySQL:
		return nil, fmt.Errorf("%w: %s has no spatial extension", ErrUnsupported, rule.Name)
	}
	return nil, fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}

// DisableExtension is the inverse of EnableExtension.
func DisableExtension(rule dialect.Rule) ([]string, error) {
	switch rule.Name {
	case dialect.Postgres:
		return []string{"DROP EXTENSION postgis"}, nil
	case dialect.MySQL, dialect.DuckDB:
		return nil, fmt.Errorf("%w: %s cannot drop its spatial extension", ErrUnsupported, rule.Name)
	}
	return nil, fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}
