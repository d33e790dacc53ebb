package geoarrow_test

import (
	"context"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geoarrow"
	"geosql/pkg/geom"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGeometries(t *testing.T) []geom.Geometry {
	t.Helper()

	line, err := geom.LineStringFromCoords([2]float64{95.3588172, 5.5072984}, [2]float64{95.3594017, 5.506638})
	require.NoError(t, err)

	square, err := geom.PolygonFromCoords([][2]float64{{0, 10}, {10, 10}, {10, 0}, {0, 0}, {0, 10}})
	require.NoError(t, err)

	return []geom.Geometry{geom.NewPoint(1, 2), nil, line, square}
}

func duck(t *testing.T) dialect.Rule {
	t.Helper()

	r, err := dialect.ForDialect(dialect.DuckDB)
	require.NoError(t, err)
	return r
}

func TestColumnRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	geoms := sampleGeometries(t)
	col, err := geoarrow.EncodeColumn(mem, geoms)
	require.NoError(t, err)
	defer col.Release()

	assert.Equal(t, 4, col.Len())
	assert.True(t, col.IsNull(1))

	back, err := geoarrow.DecodeColumn(col, duck(t))
	require.NoError(t, err)
	require.Len(t, back, 4)

	assert.Nil(t, back[1])
	for i, g := range geoms {
		if g == nil {
			continue
		}
		assert.True(t, geom.Equal(g, back[i], 0), "row %d", i)
	}
}

func TestDecodeColumn(t *testing.T) {
	t.Run(
		"postgres hex strings", func(t *testing.T) {
			b := array.NewStringBuilder(memory.NewGoAllocator())
			defer b.Release()
			b.Append("0101000020E6100000000000000000F03F0000000000000040")
			b.AppendNull()

			col := b.NewStringArray()
			defer col.Release()

			pg, err := dialect.ForDialect(dialect.Postgres)
			require.NoError(t, err)

			back, err := geoarrow.DecodeColumn(col, pg)
			require.NoError(t, err)
			assert.Equal(t, []geom.Geometry{geom.NewPoint(1, 2), nil}, back)
		},
	)

	t.Run(
		"malformed row is reported", func(t *testing.T) {
			b := array.NewBinaryBuilder(memory.NewGoAllocator(), arrow.BinaryTypes.Binary)
			defer b.Release()
			b.Append([]byte{1, 1, 0, 0, 0})

			col := b.NewBinaryArray()
			defer col.Release()

			_, err := geoarrow.DecodeColumn(col, duck(t))
			assert.ErrorIs(t, err, codec.ErrMalformedWKB)
			assert.Contains(t, err.Error(), "row 0")
		},
	)

	t.Run(
		"unsupported column type", func(t *testing.T) {
			b := array.NewFloat64Builder(memory.NewGoAllocator())
			defer b.Release()
			b.Append(1)

			col := b.NewFloat64Array()
			defer col.Release()

			_, err := geoarrow.DecodeColumn(col, duck(t))
			assert.ErrorIs(t, err, codec.ErrMalformedWKB)
		},
	)
}

func TestCollection(t *testing.T) {
	geoms := sampleGeometries(t)

	c, err := geoarrow.FromGeometries(memory.NewGoAllocator(), "GEOM", geoms, 4326)
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, "GEOM", c.GeometryColumn())
	assert.Equal(t, 4326, c.SRID())
	assert.Equal(t, int64(4), c.NumRows())
	assert.Len(t, c.GetRecords(), 1)

	back, err := c.Geometries(duck(t))
	require.NoError(t, err)
	require.Len(t, back, 4)
	assert.Nil(t, back[1])
	assert.True(t, geom.Equal(geoms[3], back[3], 0))
}

func TestNewCollectionValidation(t *testing.T) {
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{{Name: "LAT", Type: arrow.PrimitiveTypes.Float64}}, nil)

	rb := array.NewRecordBuilder(pool, schema)
	defer rb.Release()
	rb.Field(0).(*array.Float64Builder).AppendValues([]float64{5.5072984}, nil)

	rec := rb.NewRecordBatch()
	defer rec.Release()

	_, err := geoarrow.NewCollection([]arrow.RecordBatch{rec}, "GEOM", 0)
	assert.Error(t, err)

	_, err = geoarrow.NewCollection([]arrow.RecordBatch{rec}, "LAT", 0)
	assert.Error(t, err)
}

func TestSinkAndReadParquet(t *testing.T) {
	geoms := sampleGeometries(t)

	c, err := geoarrow.FromGeometries(memory.NewGoAllocator(), "GEOM", geoms, 4326)
	require.NoError(t, err)

	require.NoError(t, c.Sink())
	path := c.GetSourceFile()
	require.NotNil(t, path)
	assert.FileExists(t, *path)

	read, err := geoarrow.ReadParquet(context.Background(), *path, "GEOM", 4326)
	require.NoError(t, err)
	defer read.Release()

	back, err := read.Geometries(duck(t))
	require.NoError(t, err)
	require.Len(t, back, len(geoms))
	for i, g := range geoms {
		if g == nil {
			assert.Nil(t, back[i])
			continue
		}
		assert.True(t, geom.Equal(g, back[i], 0), "row %d", i)
	}

	c.Release()
	assert.NoFileExists(t, *path)
	assert.Nil(t, c.GetSourceFile())
}
