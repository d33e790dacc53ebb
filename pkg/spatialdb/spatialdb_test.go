package spatialdb

import (
	"context"
	"geosql/pkg/dialect"
	"geosql/pkg/geoarrow"
	"geosql/pkg/geom"
	"geosql/pkg/predicate"
	"geosql/pkg/schema"
	"geosql/pkg/scope"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type place struct{}

func (place) SpatialColumns() []string { return []string{"location"} }

func storeFor(t *testing.T, name string) (*Store, *scope.Scopes) {
	t.Helper()

	rule, err := dialect.ForDialect(name)
	require.NoError(t, err)

	sc, err := scope.New(place{}, rule)
	require.NoError(t, err)

	return NewStore(nil, rule), sc
}

func TestRender(t *testing.T) {
	t.Run(
		"mysql distance", func(t *testing.T) {
			s, sc := storeFor(t, dialect.MySQL)
			where, err := sc.Distance("location", geom.NewPoint(1, 2), 10)
			require.NoError(t, err)

			query, args, err := s.Render(sc, Query{Table: "places", Where: where})
			require.NoError(t, err)

			assert.Equal(t, "SELECT * FROM `places` WHERE ST_Distance(location, ST_GeomFromText(?)) <= ?", query)
			assert.Equal(t, []any{"POINT (1 2)", 10.0}, args)
		},
	)

	t.Run(
		"postgres placeholders follow projection then where", func(t *testing.T) {
			s, sc := storeFor(t, dialect.Postgres)
			proj, err := sc.DistanceValue("location", geom.NewPoint(1, 2))
			require.NoError(t, err)
			where, err := sc.DistanceExcludingSelf("location", geom.NewPoint(1, 2), 5)
			require.NoError(t, err)

			query, args, err := s.Render(sc, Query{
				Table:       "places",
				Projections: []scope.Projection{proj},
				Where:       where,
				Limit:       3,
			})
			require.NoError(t, err)

			assert.Equal(t,
				`SELECT *, ST_Distance(location::geometry, ST_GeomFromText($1)) as distance FROM "places" `+
					`WHERE ST_Distance(location::geometry, ST_GeomFromText($2)) <= $3 `+
					`AND ST_Distance(location::geometry, ST_GeomFromText($4)) != 0 LIMIT 3`,
				query)
			assert.Len(t, args, 4)
			assert.Equal(t, 5.0, args[2])
		},
	)

	t.Run(
		"duckdb reads geometry as wkb", func(t *testing.T) {
			s, sc := storeFor(t, dialect.DuckDB)

			query, _, err := s.Render(sc, Query{Table: "places"})
			require.NoError(t, err)
			assert.Equal(t, `SELECT * REPLACE (ST_AsWKB("location")::BLOB AS "location") FROM "places"`, query)

			query, _, err = s.Render(sc, Query{Table: "places", Columns: []string{"name", "location"}})
			require.NoError(t, err)
			assert.Equal(t, `SELECT "name", ST_AsWKB("location")::BLOB AS "location" FROM "places"`, query)
		},
	)

	t.Run(
		"missing table", func(t *testing.T) {
			s, sc := storeFor(t, dialect.MySQL)
			_, _, err := s.Render(sc, Query{})
			assert.Error(t, err)
		},
	)
}

func TestRenderInsert(t *testing.T) {
	s, sc := storeFor(t, dialect.Postgres)

	query, args, err := s.RenderInsert(sc, "places", map[string]any{
		"name":     "Empire State Building",
		"location": geom.NewPoint(-73.9878441, 40.7484404),
	})
	require.NoError(t, err)

	assert.Equal(t, `INSERT INTO "places" ("location", "name") VALUES (ST_GeomFromText($1), $2)`, query)
	assert.Equal(t, []any{"SRID=4326;POINT (-73.9878441 40.7484404)", "Empire State Building"}, args)

	_, _, err = s.RenderInsert(sc, "places", map[string]any{"name": geom.NewPoint(1, 2)})
	assert.ErrorIs(t, err, scope.ErrColumnNotSpatial)

	_, _, err = s.RenderInsert(sc, "places", nil)
	assert.Error(t, err)
}

func TestDataSourceName(t *testing.T) {
	t.Run(
		"mysql", func(t *testing.T) {
			dsn, err := Config{Dialect: "mysql", Host: "db", Name: "gis", User: "root", Password: "secret"}.DataSourceName()
			require.NoError(t, err)
			assert.Equal(t, "root:secret@tcp(db:3306)/gis?parseTime=true", dsn)
		},
	)

	t.Run(
		"postgres", func(t *testing.T) {
			dsn, err := Config{Dialect: "pg_sql", Host: "db", Name: "gis", User: "postgres", Password: "p w"}.DataSourceName()
			require.NoError(t, err)
			assert.Equal(t, "host=db port=5432 dbname=gis user=postgres password='p w'", dsn)

			_, err = Config{Dialect: "postgres", DSN: "postgres://host:notaport/db"}.DataSourceName()
			assert.Error(t, err)
		},
	)

	t.Run(
		"duckdb", func(t *testing.T) {
			dsn, err := Config{Dialect: "duckdb"}.DataSourceName()
			require.NoError(t, err)
			assert.Equal(t, "", dsn)

			dsn, err = Config{Dialect: "duckdb", DSN: "/tmp/gis.duckdb"}.DataSourceName()
			require.NoError(t, err)
			assert.Equal(t, "/tmp/gis.duckdb", dsn)
		},
	)

	t.Run(
		"unknown dialect", func(t *testing.T) {
			_, err := Config{Dialect: "oracle"}.DataSourceName()
			assert.ErrorIs(t, err, dialect.ErrUnsupportedDialect)
		},
	)
}

func TestLoadConfig(t *testing.T) {
	keys := []string{"GEOSQL_DIALECT", "GEOSQL_DSN", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD"}
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
	}

	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("GEOSQL_DIALECT=postgresql\nDB_HOST=gis.internal\nDB_NAME=places\n"), 0o644))

	cfg := LoadConfig(env)
	assert.Equal(t, "postgresql", cfg.Dialect)
	assert.Equal(t, "gis.internal", cfg.Host)
	assert.Equal(t, "places", cfg.Name)

	os.Unsetenv("GEOSQL_DIALECT")
	assert.Equal(t, dialect.DuckDB, ConfigFromEnv().Dialect)
}

func openDuckDB(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{Dialect: dialect.DuckDB})
	if err != nil {
		t.Skipf("duckdb spatial extension unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDuckDBIntegration(t *testing.T) {
	ctx := context.Background()
	s := openDuckDB(t)

	assert.Equal(t, dialect.DuckDB, s.Rule().Name)
	assert.NotEmpty(t, s.ServerVersion())

	sc, err := scope.New(place{}, s.Rule())
	require.NoError(t, err)

	addColumn, err := schema.AddColumn(s.Rule(), "places", "location", schema.Point, 0)
	require.NoError(t, err)
	require.NoError(t, s.Exec(ctx, `CREATE TABLE "places" ("name" VARCHAR)`, addColumn))

	rows := map[string]geom.Geometry{
		"origin": geom.NewPoint(0, 0),
		"near":   geom.NewPoint(3, 4),
		"far":    geom.NewPoint(30, 40),
	}
	for name, g := range rows {
		n, err := s.Insert(ctx, sc, "places", map[string]any{"name": name, "location": g})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	t.Run(
		"distance filter", func(t *testing.T) {
			where, err := sc.Distance("location", geom.NewPoint(0, 0), 5)
			require.NoError(t, err)

			out, err := s.Select(ctx, sc, Query{Table: "places", Where: where})
			require.NoError(t, err)
			require.Len(t, out, 2)

			for _, row := range out {
				g, ok := row["location"].(geom.Geometry)
				require.True(t, ok, "location should be hydrated")
				assert.True(t, geom.Equal(rows[row["name"].(string)], g, 0))
			}
		},
	)

	t.Run(
		"distance excluding self", func(t *testing.T) {
			where, err := sc.DistanceExcludingSelf("location", geom.NewPoint(0, 0), 5)
			require.NoError(t, err)

			out, err := s.Select(ctx, sc, Query{Table: "places", Columns: []string{"name"}, Where: where})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "near", out[0]["name"])
		},
	)

	t.Run(
		"distance value projection", func(t *testing.T) {
			proj, err := sc.DistanceValue("location", geom.NewPoint(0, 0))
			require.NoError(t, err)
			where, err := sc.Distance("location", geom.NewPoint(0, 0), 5)
			require.NoError(t, err)

			out, err := s.Select(ctx, sc, Query{
				Table:       "places",
				Projections: []scope.Projection{proj},
				Where:       append(where, predicate.Fragment{SQL: `"name" = ?`, Bindings: []any{"near"}}),
			})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.InDelta(t, 5.0, out[0]["distance"], 1e-9)
		},
	)

	t.Run(
		"topological filter", func(t *testing.T) {
			box, err := geom.PolygonFromCoords([][2]float64{{-1, -1}, {10, -1}, {10, 10}, {-1, 10}, {-1, -1}})
			require.NoError(t, err)

			where, err := sc.Within("location", box)
			require.NoError(t, err)

			out, err := s.Select(ctx, sc, Query{Table: "places", Columns: []string{"name"}, Where: []predicate.Fragment{where}})
			require.NoError(t, err)
			assert.Len(t, out, 2)
		},
	)

	t.Run(
		"arrow results", func(t *testing.T) {
			query := `SELECT "name", ` + s.Rule().ReadExpr("location") + ` AS "location" FROM "places" ORDER BY "name"`

			c, err := s.QueryArrow(ctx, "location", query)
			require.NoError(t, err)
			defer c.Release()

			geoms, err := c.Geometries(s.Rule())
			require.NoError(t, err)
			require.Len(t, geoms, 3)
			assert.True(t, geom.Equal(rows["far"], geoms[0], 0))
		},
	)

	t.Run(
		"arrow ingest", func(t *testing.T) {
			require.NoError(t, s.Exec(ctx, `CREATE TABLE "imports" ("name" VARCHAR, "location" GEOMETRY)`))

			c, err := geoarrow.FromGeometries(memory.NewGoAllocator(), "location",
				[]geom.Geometry{geom.NewPoint(1, 1), geom.NewPoint(50, 50)}, 0)
			require.NoError(t, err)
			defer c.Release()

			n, err := s.LoadArrow(ctx, "imports", c)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			where, err := sc.Distance("location", geom.NewPoint(0, 0), 5)
			require.NoError(t, err)

			out, err := s.Select(ctx, sc, Query{Table: "imports", Where: where})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.True(t, geom.Equal(geom.NewPoint(1, 1), out[0]["location"].(geom.Geometry), 0))
		},
	)
}

func TestQueryArrowRequiresDuckDB(t *testing.T) {
	s, _ := storeFor(t, dialect.MySQL)
	_, err := s.QueryArrow(context.Background(), "location", "SELECT 1")
	assert.ErrorIs(t, err, dialect.ErrFunctionUnsupported)

	_, err = s.LoadArrow(context.Background(), "places", nil)
	assert.ErrorIs(t, err, dialect.ErrFunctionUnsupported)
}
