// Package geoarrow moves geometries in and out of Arrow record batches as
// WKB columns.
package geoarrow

import (
	"encoding/binary"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// EncodeColumn builds a little-endian WKB column. Nil geometries become nulls.
func EncodeColumn(mem memory.Allocator, geoms []geom.Geometry) (*array.Binary, error) {
	b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer b.Release()

	if err := appendWKB(b, geoms); err != nil {
		return nil, err
	}
	return b.NewBinaryArray(), nil
}

func appendWKB(b *array.BinaryBuilder, geoms []geom.Geometry) error {
	b.Reserve(len(geoms))
	for i, g := range geoms {
		if g == nil {
			b.AppendNull()
			continue
		}

		wkb, err := codec.WKB(g, binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		b.Append(wkb)
	}
	return nil
}

// DecodeColumn decodes every row of a Binary, LargeBinary or String column
// with the framing of rule. Nulls decode to nil.
func DecodeColumn(arr arrow.Array, rule dialect.Rule) ([]geom.Geometry, error) {
	value, err := accessor(arr)
	if err != nil {
		return nil, err
	}

	out := make([]geom.Geometry, arr.Len())
	for i := range arr.Len() {
		if arr.IsNull(i) {
			continue
		}

		g, err := codec.Decode(value(i), rule)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = g
	}

	return out, nil
}

func accessor(arr arrow.Array) (func(int) []byte, error) {
	switch a := arr.(type) {
	case *array.Binary:
		return a.Value, nil
	case *array.LargeBinary:
		return a.Value, nil
	case *array.String:
		return func(i int) []byte { return []byte(a.Value(i)) }, nil
	case *array.LargeString:
		return func(i int) []byte { return []byte(a.Value(i)) }, nil
	}
	return nil, fmt.Errorf("%w: unsupported column type %s", codec.ErrMalformedWKB, arr.DataType())
}

func isGeometryType(t arrow.DataType) bool {
	switch t.ID() {
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.STRING, arrow.LARGE_STRING:
		return true
	}
	return false
}
