package scope

import (
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"geosql/pkg/predicate"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type place struct{}

func (place) SpatialColumns() []string { return []string{"location", "area", "location"} }

type plain struct{}

func (plain) SpatialColumns() []string { return nil }

func newScopes(t *testing.T, name string) *Scopes {
	t.Helper()

	rule, err := dialect.ForDialect(name)
	require.NoError(t, err)

	s, err := New(place{}, rule)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newScopes(t, dialect.MySQL)
	assert.Equal(t, []string{"location", "area"}, s.Columns())
	assert.True(t, s.IsSpatial("area"))
	assert.False(t, s.IsSpatial("name"))

	_, err := New(plain{}, s.Rule())
	assert.ErrorIs(t, err, ErrNoSpatialColumns)
}

func TestDistanceScopes(t *testing.T) {
	s := newScopes(t, dialect.MySQL)
	p := geom.NewPoint(1, 2)

	t.Run(
		"variants", func(t *testing.T) {
			out, err := s.Distance("location", p, 10)
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "ST_Distance(location, ST_GeomFromText(?)) <= ?", out[0].SQL)

			out, err = s.DistanceExcludingSelf("location", p, 10)
			require.NoError(t, err)
			assert.Len(t, out, 2)

			out, err = s.DistanceSphere("location", p, 10)
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "ST_Distance_Sphere(location, ST_GeomFromText(?)) <= ?", out[0].SQL)

			out, err = s.DistanceSphereExcludingSelf("location", p, 10)
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, "ST_Distance_Sphere(location, ST_GeomFromText(?)) != 0", out[1].SQL)
		},
	)

	t.Run(
		"values need wildcard", func(t *testing.T) {
			v, err := s.DistanceValue("location", p)
			require.NoError(t, err)
			assert.True(t, v.NeedsWildcard)
			assert.Equal(t, "ST_Distance(location, ST_GeomFromText(?)) as distance", v.SQL)

			v, err = s.DistanceSphereValue("location", p)
			require.NoError(t, err)
			assert.Equal(t, "ST_Distance_Sphere(location, ST_GeomFromText(?)) as distance", v.SQL)
		},
	)

	t.Run(
		"undeclared column", func(t *testing.T) {
			_, err := s.Distance("name", p, 10)
			assert.ErrorIs(t, err, ErrColumnNotSpatial)

			_, err = s.DistanceSphereValue("name", p)
			assert.ErrorIs(t, err, ErrColumnNotSpatial)
		},
	)
}

func TestRelationScopes(t *testing.T) {
	s := newScopes(t, dialect.Postgres)
	p := geom.NewPoint(1, 2)

	calls := map[string]func(string, geom.Geometry) (predicate.Fragment, error){
		"Within":     s.Within,
		"Crosses":    s.Crosses,
		"Contains":   s.Contains,
		"Disjoint":   s.Disjoint,
		"Equals":     s.Equals,
		"Intersects": s.Intersects,
		"Overlaps":   s.Overlaps,
		"Touches":    s.DoesTouch,
	}

	for name, call := range calls {
		f, err := call("area", p)
		require.NoError(t, err, name)
		assert.Equal(t, "ST_"+name+`("area"::geometry, ST_GeomFromText(?))`, f.SQL)
		assert.Equal(t, []any{"SRID=4326;POINT (1 2)"}, f.Bindings)

		_, err = call("name", p)
		assert.ErrorIs(t, err, ErrColumnNotSpatial, name)
	}

	f, err := s.Comparison("area", p, "intersects")
	require.NoError(t, err)
	assert.Equal(t, `ST_Intersects("area"::geometry, ST_GeomFromText(?))`, f.SQL)

	_, err = s.Comparison("area", p, "covers")
	assert.ErrorIs(t, err, predicate.ErrUnknownRelation)
}

func TestInsertValues(t *testing.T) {
	s := newScopes(t, dialect.MySQL)

	out, err := s.InsertValues(map[string]any{
		"name":     "Empire State Building",
		"location": geom.NewPoint(-73.9878441, 40.7484404),
	})
	require.NoError(t, err)

	assert.Equal(t, "Empire State Building", out["name"])
	assert.Equal(t, predicate.Fragment{
		SQL:      "ST_GeomFromText(?)",
		Bindings: []any{"POINT (-73.9878441 40.7484404)"},
	}, out["location"])

	_, err = s.InsertValues(map[string]any{"name": geom.NewPoint(1, 2)})
	assert.ErrorIs(t, err, ErrColumnNotSpatial)

	_, err = s.InsertValues(map[string]any{"area": geom.Polygon{}})
	assert.ErrorIs(t, err, geom.ErrInvalidGeometry)
}

func TestHydrate(t *testing.T) {
	t.Run(
		"mysql bytes", func(t *testing.T) {
			s := newScopes(t, dialect.MySQL)
			payload, err := codec.Frame(geom.NewPoint(1, 2), s.Rule(), 4326)
			require.NoError(t, err)

			row := map[string]any{"id": int64(7), "location": payload, "area": nil}
			require.NoError(t, s.Hydrate(row))

			assert.Equal(t, geom.NewPoint(1, 2), row["location"])
			assert.Nil(t, row["area"])
			assert.Equal(t, int64(7), row["id"])
		},
	)

	t.Run(
		"postgres hex string", func(t *testing.T) {
			s := newScopes(t, dialect.Postgres)
			row := map[string]any{"location": "0101000020E6100000000000000000F03F0000000000000040"}
			require.NoError(t, s.Hydrate(row))
			assert.Equal(t, geom.NewPoint(1, 2), row["location"])
		},
	)

	t.Run(
		"malformed payload", func(t *testing.T) {
			s := newScopes(t, dialect.MySQL)
			err := s.Hydrate(map[string]any{"location": []byte{1, 2}})
			assert.ErrorIs(t, err, codec.ErrMalformedWKB)

			err = s.Hydrate(map[string]any{"location": 12})
			assert.ErrorIs(t, err, codec.ErrMalformedWKB)
		},
	)
}
