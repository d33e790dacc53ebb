package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"geosql/pkg/dialect"
	"geosql/pkg/predicate"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const point = `{"type":"Point","coordinates":[1,2]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := makeRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

func TestEncodeCommand(t *testing.T) {
	out, err := run(t, "", "encode", "--geojson", point)
	require.NoError(t, err)
	assert.Equal(t, "POINT (1 2)\n", out)

	out, err = run(t, "", "encode", "--geojson", point, "--dialect", "postgres")
	require.NoError(t, err)
	assert.Equal(t, "SRID=4326;POINT (1 2)\n", out)

	out, err = run(t, "", "encode", "--geojson", point, "--dialect", "mysql")
	require.NoError(t, err)
	assert.Equal(t, "POINT (1 2)\n", out)

	out, err = run(t, point, "encode", "--geojson", "-")
	require.NoError(t, err)
	assert.Equal(t, "POINT (1 2)\n", out)

	_, err = run(t, "", "encode")
	assert.Error(t, err)
}

func TestDecodeCommand(t *testing.T) {
	out, err := run(t, "", "decode", "--dialect", "mysql", "--hex", "000000000101000000000000000000F03F0000000000000040")
	require.NoError(t, err)
	assert.Equal(t, "POINT (1 2)\n", out)

	out, err = run(t, "", "decode", "--dialect", "postgres", "--geojson", "--hex", "0101000020E6100000000000000000F03F0000000000000040")
	require.NoError(t, err)
	assert.JSONEq(t, point, out)

	_, err = run(t, "", "decode", "--dialect", "mysql", "--hex", "0000")
	assert.Error(t, err)

	_, err = run(t, "", "decode", "--hex", "00")
	assert.Error(t, err)
}

func TestPredicateCommands(t *testing.T) {
	t.Run(
		"distance", func(t *testing.T) {
			out, err := run(t, "", "predicate", "distance", "--dialect", "mysql", "--column", "point", "--geojson", point, "--max", "10")
			require.NoError(t, err)

			var fragments []predicate.Fragment
			require.NoError(t, json.Unmarshal([]byte(out), &fragments))
			require.Len(t, fragments, 1)
			assert.Equal(t, "ST_Distance(point, ST_GeomFromText(?)) <= ?", fragments[0].SQL)
			assert.Equal(t, []any{"POINT (1 2)", 10.0}, fragments[0].Bindings)
		},
	)

	t.Run(
		"sphere gated by server version", func(t *testing.T) {
			_, err := run(t, "", "predicate", "distance", "--dialect", "mysql", "--server-version", "5.6.51",
				"--column", "point", "--geojson", point, "--max", "10", "--sphere")
			assert.True(t, errors.Is(err, dialect.ErrFunctionUnsupported), err)
		},
	)

	t.Run(
		"value", func(t *testing.T) {
			out, err := run(t, "", "predicate", "value", "--dialect", "postgres", "--column", "point", "--geojson", point)
			require.NoError(t, err)
			assert.Contains(t, out, "ST_Distance(point::geometry, ST_GeomFromText(?)) as distance")
		},
	)

	t.Run(
		"relation", func(t *testing.T) {
			out, err := run(t, "", "predicate", "relation", "within", "--dialect", "mysql", "--column", "point", "--geojson", point)
			require.NoError(t, err)
			assert.Contains(t, out, "ST_Within(`point`, ST_GeomFromText(?))")

			_, err = run(t, "", "predicate", "relation", "covers", "--dialect", "mysql", "--column", "point", "--geojson", point)
			assert.True(t, errors.Is(err, predicate.ErrUnknownRelation), err)
		},
	)
}

func TestSchemaCommands(t *testing.T) {
	out, err := run(t, "", "schema", "column", "--dialect", "postgres", "--table", "places", "--column", "location", "--kind", "point", "--srid", "4326")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE \"places\" ADD COLUMN \"location\" GEOMETRY(POINT, 4326);\n", out)

	out, err = run(t, "", "schema", "index", "--dialect", "mysql", "--table", "places", "--column", "location")
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `places` ADD SPATIAL INDEX `places_location_idx`(`location`);\n", out)

	out, err = run(t, "", "schema", "index", "--dialect", "duckdb", "--table", "places", "--name", "idx", "--drop")
	require.NoError(t, err)
	assert.Equal(t, "DROP INDEX \"idx\";\n", out)

	out, err = run(t, "", "schema", "extension", "--dialect", "duckdb")
	require.NoError(t, err)
	assert.Equal(t, "INSTALL spatial;\nLOAD spatial;\n", out)

	_, err = run(t, "", "schema", "extension", "--dialect", "mysql")
	assert.Error(t, err)
}
