package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrUnsupportedDialect is returned for database kinds without a Rule.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrFunctionUnsupported is returned when the active Rule has no spelling
	// for a requested SQL function, e.g. spherical distance on old servers.
	ErrFunctionUnsupported = errors.New("function not supported by dialect")
)

const (
	MySQL    = "mysql"
	Postgres = "postgres"
	DuckDB   = "duckdb"
)

// Encoding describes how a driver hands geometry column values over.
type Encoding int

const (
	// Raw bytes, possibly preceded by a fixed-size header.
	Raw Encoding = iota
	// Hex text of the binary value.
	Hex
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Hex:
		return "hex"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// QuoteStyle selects the identifier quoting convention.
type QuoteStyle int

const (
	Backtick QuoteStyle = iota
	DoubleQuote
)

// PlaceholderStyle selects how bind parameters are spelled by the driver.
type PlaceholderStyle int

const (
	Question PlaceholderStyle = iota
	Dollar
)

// Rule is the immutable per-database ruleset. It is a plain value: copies
// never share state, and methods that refine it return a new Rule.
type Rule struct {
	Name string

	// Read path
	BinaryPrefixBytes int
	BinaryEncoding    Encoding
	ExtendedWKB       bool
	// ReadExprFormat wraps a selected geometry column, "%s" is the column.
	ReadExprFormat string

	// Write path
	SRIDPrefixOnWrite string
	GeomFromTextFn    string

	// Function spelling
	PlanarDistanceFn          string
	SphericalDistanceFn       string
	LegacySphericalDistanceFn string
	SphericalSince            string
	ColumnCastSuffix          string

	Quote        QuoteStyle
	Placeholder  PlaceholderStyle
	VersionQuery string

	// ServerVersion is set by WithServerVersion.
	ServerVersion string
}

var rules = map[string]Rule{
	MySQL: {
		Name: MySQL,
		// MySQL stores a 4-byte little-endian SRID in front of the WKB.
		BinaryPrefixBytes:   4,
		BinaryEncoding:      Raw,
		GeomFromTextFn:      "ST_GeomFromText",
		PlanarDistanceFn:    "ST_Distance",
		SphericalDistanceFn: "ST_Distance_Sphere",
		SphericalSince:      "5.7.6",
		Quote:               Backtick,
		Placeholder:         Question,
		VersionQuery:        "SELECT VERSION()",
	},
	Postgres: {
		Name:                      Postgres,
		BinaryEncoding:            Hex,
		ExtendedWKB:               true,
		SRIDPrefixOnWrite:         "SRID=4326;",
		GeomFromTextFn:            "ST_GeomFromText",
		PlanarDistanceFn:          "ST_Distance",
		SphericalDistanceFn:       "ST_DistanceSphere",
		LegacySphericalDistanceFn: "ST_Distance_Sphere",
		SphericalSince:            "2.2.0",
		ColumnCastSuffix:          "::geometry",
		Quote:                     DoubleQuote,
		Placeholder:               Dollar,
		VersionQuery:              "SELECT postgis_lib_version()",
	},
	DuckDB: {
		Name:                DuckDB,
		BinaryEncoding:      Raw,
		ReadExprFormat:      "ST_AsWKB(%s)::BLOB",
		GeomFromTextFn:      "ST_GeomFromText",
		PlanarDistanceFn:    "ST_Distance",
		SphericalDistanceFn: "ST_Distance_Sphere",
		Quote:               DoubleQuote,
		Placeholder:         Question,
		VersionQuery:        "SELECT version()",
	},
}

var aliases = map[string]string{
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgsql":      Postgres,
	"pg_sql":     Postgres,
	"pgx":        Postgres,
	"duckdb":     DuckDB,
}

// ForDialect returns the Rule registered for name. Lookup is case
// insensitive and accepts the driver aliases in Names.
func ForDialect(name string) (Rule, error) {
	canonical, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
	return rules[canonical], nil
}

// Supported lists the canonical dialect names.
func Supported() []string {
	out := make([]string, 0, len(rules))
	for name := range rules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Names lists every accepted spelling for this Rule, canonical name first.
func (r Rule) Names() []string {
	out := []string{r.Name}
	var extra []string
	for alias, canonical := range aliases {
		if canonical == r.Name && alias != r.Name {
			extra = append(extra, alias)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// SphericalFn returns the spherical distance function for this Rule.
func (r Rule) SphericalFn() (string, error) {
	if r.SphericalDistanceFn == "" {
		if r.ServerVersion != "" {
			return "", fmt.Errorf("%w: spherical distance on %s %s", ErrFunctionUnsupported, r.Name, r.ServerVersion)
		}
		return "", fmt.Errorf("%w: spherical distance on %s", ErrFunctionUnsupported, r.Name)
	}
	return r.SphericalDistanceFn, nil
}

// DistanceFn picks the planar or spherical distance function.
func (r Rule) DistanceFn(sphere bool) (string, error) {
	if sphere {
		return r.SphericalFn()
	}
	if r.PlanarDistanceFn == "" {
		return "", fmt.Errorf("%w: planar distance on %s", ErrFunctionUnsupported, r.Name)
	}
	return r.PlanarDistanceFn, nil
}

// QuoteIdentifier quotes a possibly table-qualified column name.
func (r Rule) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	switch r.Quote {
	case DoubleQuote:
		return pgx.Identifier(parts).Sanitize()
	default:
		for i, p := range parts {
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		}
		return strings.Join(parts, ".")
	}
}

// ReadExpr returns the select-list expression yielding the payload Decode
// expects for a geometry column.
func (r Rule) ReadExpr(column string) string {
	quoted := r.QuoteIdentifier(column)
	if r.ReadExprFormat == "" {
		return quoted
	}
	return fmt.Sprintf(r.ReadExprFormat, quoted)
}

// Rebind rewrites '?' placeholders into the driver's native style. Question
// marks inside single-quoted literals are left alone.
func (r Rule) Rebind(query string) string {
	if r.Placeholder != Dollar {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			fmt.Fprintf(&sb, "$%d", n)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
