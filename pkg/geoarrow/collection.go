package geoarrow

import (
	"context"
	"fmt"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

type Collection struct {
	records        []arrow.RecordBatch
	geometryColumn string
	srid           int
	tempDir        string
	sourceFile     *string
}

// NewCollection wraps records whose geometryColumn holds WKB payloads. The
// collection takes ownership of the records.
func NewCollection(records []arrow.RecordBatch, geometryColumn string, srid int) (*Collection, error) {
	out := &Collection{
		records:        records,
		geometryColumn: geometryColumn,
		srid:           srid,
	}

	if err := out.validate(); err != nil {
		return nil, err
	}

	return out, nil
}

// FromGeometries builds a single record batch holding one WKB column.
func FromGeometries(mem memory.Allocator, geometryColumn string, geoms []geom.Geometry, srid int) (*Collection, error) {
	schema := arrow.NewSchema([]arrow.Field{{Name: geometryColumn, Type: arrow.BinaryTypes.Binary, Nullable: true}}, nil)
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	if err := appendWKB(builder.Field(0).(*array.BinaryBuilder), geoms); err != nil {
		return nil, err
	}
	rec := builder.NewRecordBatch()

	return NewCollection([]arrow.RecordBatch{rec}, geometryColumn, srid)
}

func (c *Collection) validate() error {
	for i, rec := range c.records {
		indices := rec.Schema().FieldIndices(c.geometryColumn)
		if len(indices) == 0 {
			return fmt.Errorf("required column %s not found in record batch %d", c.geometryColumn, i)
		}

		field := rec.Schema().Field(indices[0])
		if !isGeometryType(field.Type) {
			return fmt.Errorf("column %s has type %s, expected binary or string", c.geometryColumn, field.Type)
		}
	}

	return nil
}

// GetRecords returns the arrow record batches
func (c *Collection) GetRecords() []arrow.RecordBatch {
	return c.records
}

func (c *Collection) GeometryColumn() string {
	return c.geometryColumn
}

func (c *Collection) SRID() int {
	return c.srid
}

func (c *Collection) NumRows() int64 {
	var n int64
	for _, rec := range c.records {
		n += rec.NumRows()
	}
	return n
}

// Geometries decodes the geometry column of every batch, in row order.
func (c *Collection) Geometries(rule dialect.Rule) ([]geom.Geometry, error) {
	out := make([]geom.Geometry, 0, c.NumRows())

	for i, rec := range c.records {
		idx := rec.Schema().FieldIndices(c.geometryColumn)[0]

		geoms, err := DecodeColumn(rec.Column(idx), rule)
		if err != nil {
			return nil, fmt.Errorf("record batch %d: %w", i, err)
		}
		out = append(out, geoms...)
	}

	return out, nil
}

// Release releases the arrow records and cleans up temporary files
func (c *Collection) Release() {
	for _, rec := range c.records {
		rec.Release()
	}
	c.records = nil

	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
		c.tempDir = ""
		c.sourceFile = nil
	}
}

// Sink writes the record batches into a Snappy compressed parquet file in a
// temporary directory owned by the collection.
func (c *Collection) Sink() error {
	if len(c.records) == 0 {
		return fmt.Errorf("records are empty")
	}

	tempDir, err := os.MkdirTemp("", "geosql_collection_*")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %w", err)
	}
	c.tempDir = tempDir

	filePath := filepath.Join(tempDir, "geometries.parquet")
	if err := WriteParquet(filePath, c.records); err != nil {
		return err
	}

	c.sourceFile = &filePath
	return nil
}

// GetSourceFile returns the path to the parquet file if materialized
func (c *Collection) GetSourceFile() *string {
	return c.sourceFile
}

// WriteParquet writes records, which must share a schema, to path.
func WriteParquet(path string, records []arrow.RecordBatch) error {
	if len(records) == 0 {
		return fmt.Errorf("records are empty")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	writer, err := pqarrow.NewFileWriter(
		records[0].Schema(),
		f,
		parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	for _, rec := range records {
		if err := writer.WriteBuffered(rec); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}

	return writer.Close()
}

// ReadParquet loads a parquet file written by Sink or WriteParquet.
func ReadParquet(ctx context.Context, path, geometryColumn string, srid int) (*Collection, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %w", path, err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{
		BatchSize: 10000,
	}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader for %s: %w", path, err)
	}

	recordReader, err := reader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get record reader for %s: %w", path, err)
	}
	defer recordReader.Release()

	var recs []arrow.RecordBatch
	for recordReader.Next() {
		rec := recordReader.RecordBatch()
		rec.Retain()
		recs = append(recs, rec)
	}

	if err := recordReader.Err(); err != nil {
		for _, rec := range recs {
			rec.Release()
		}
		return nil, fmt.Errorf("error reading records from %s: %w", path, err)
	}

	out, err := NewCollection(recs, geometryColumn, srid)
	if err != nil {
		for _, rec := range recs {
			rec.Release()
		}
		return nil, err
	}
	return out, nil
}
