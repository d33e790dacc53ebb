package flight

import (
	"encoding/json"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geoarrow"
	"geosql/pkg/geom"
	"geosql/pkg/spatialdb"
	"io"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const (
	OpDecodeWKB = "decode_wkb"
	OpEncodeWKT = "encode_wkt"
)

// Action is the JSON sent in the AppMetadata (or descriptor command) of the
// first DoExchange message.
type Action struct {
	Operation string `json:"operation"`
	Dialect   string `json:"dialect"`
	Column    string `json:"column"`
}

type GeoFlightServer struct {
	flight.BaseFlightServer
	store *spatialdb.Store
	mem   memory.Allocator
}

// NewGeoFlightServer creates the exchange service. store may be nil.
func NewGeoFlightServer(store *spatialdb.Store) *GeoFlightServer {
	return &GeoFlightServer{
		store: store,
		mem:   memory.NewGoAllocator(),
	}
}

func (s *GeoFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	desc, err := stream.Recv()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	action, err := parseAction(desc)
	if err != nil {
		return err
	}

	rule, err := s.rule(action.Dialect)
	if err != nil {
		return err
	}

	log.Printf("Operation: %s, dialect: %s, column: %s", action.Operation, rule.Name, action.Column)

	switch action.Operation {
	case OpDecodeWKB:
		return s.exchange(stream, action.Column, func(rec arrow.RecordBatch, col arrow.Array) (arrow.RecordBatch, error) {
			return s.decodeBatch(rec, col, rule)
		})
	case OpEncodeWKT:
		return s.exchange(stream, action.Column, s.encodeBatch)
	default:
		return fmt.Errorf("unsupported operation: %s", action.Operation)
	}
}

func parseAction(desc *flight.FlightData) (Action, error) {
	var raw []byte
	if len(desc.AppMetadata) > 0 {
		raw = desc.AppMetadata
	} else if desc.FlightDescriptor != nil && len(desc.FlightDescriptor.Cmd) > 0 {
		raw = desc.FlightDescriptor.Cmd
	}

	var action Action
	if len(raw) == 0 {
		return action, fmt.Errorf("missing exchange metadata")
	}

	if err := json.Unmarshal(raw, &action); err != nil || action.Operation == "" {
		// Fallback: treat the metadata as a raw string (the operation name)
		action = Action{Operation: string(raw)}
	}
	if action.Column == "" {
		action.Column = "geom"
	}
	return action, nil
}

func (s *GeoFlightServer) rule(name string) (dialect.Rule, error) {
	if name == "" {
		if s.store != nil {
			return s.store.Rule(), nil
		}
		return dialect.Rule{}, fmt.Errorf("dialect is required")
	}

	rule, err := dialect.ForDialect(name)
	if err != nil {
		return dialect.Rule{}, err
	}
	if s.store != nil && s.store.Rule().Name == rule.Name {
		return s.store.Rule(), nil
	}
	return rule, nil
}

type transform func(rec arrow.RecordBatch, col arrow.Array) (arrow.RecordBatch, error)

// exchange transforms every incoming batch as it arrives and streams the
// result back, so nothing is buffered beyond the current batch.
func (s *GeoFlightServer) exchange(stream flight.FlightService_DoExchangeServer, geometryColumn string, fn transform) error {
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer reader.Release()

	var (
		writer *flight.Writer
		rows   int64
	)
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	for reader.Next() {
		rec := reader.RecordBatch()

		indices := rec.Schema().FieldIndices(geometryColumn)
		if len(indices) == 0 {
			return fmt.Errorf("required column %s not found in records", geometryColumn)
		}

		out, err := fn(rec, rec.Column(indices[0]))
		if err != nil {
			return fmt.Errorf("batch starting at row %d: %w", rows, err)
		}

		if writer == nil {
			writer = flight.NewRecordWriter(stream, ipc.WithSchema(out.Schema()))
		}
		err = writer.Write(out)
		out.Release()
		if err != nil {
			return err
		}

		rows += rec.NumRows()
	}

	if err := reader.Err(); err != nil {
		return err
	}
	if writer == nil {
		return fmt.Errorf("no records received")
	}

	log.Printf("Exchanged %d rows", rows)
	return nil
}

// decodeBatch appends "wkt" and "geojson" string columns decoded from col.
func (s *GeoFlightServer) decodeBatch(rec arrow.RecordBatch, col arrow.Array, rule dialect.Rule) (arrow.RecordBatch, error) {
	geoms, err := geoarrow.DecodeColumn(col, rule)
	if err != nil {
		return nil, err
	}

	wktB := array.NewStringBuilder(s.mem)
	defer wktB.Release()
	jsonB := array.NewStringBuilder(s.mem)
	defer jsonB.Release()

	for i, g := range geoms {
		if g == nil {
			wktB.AppendNull()
			jsonB.AppendNull()
			continue
		}

		text, err := codec.Encode(g)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		raw, err := geom.MarshalGeoJSON(g)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		wktB.Append(text)
		jsonB.Append(string(raw))
	}

	wktArr := wktB.NewArray()
	defer wktArr.Release()
	jsonArr := jsonB.NewArray()
	defer jsonArr.Release()

	return withColumns(rec,
		column{arrow.Field{Name: "wkt", Type: arrow.BinaryTypes.String, Nullable: true}, wktArr},
		column{arrow.Field{Name: "geojson", Type: arrow.BinaryTypes.String, Nullable: true}, jsonArr},
	)
}

// encodeBatch appends a "wkb" column parsed from the WKT strings in col.
func (s *GeoFlightServer) encodeBatch(rec arrow.RecordBatch, col arrow.Array) (arrow.RecordBatch, error) {
	strs, ok := col.(*array.String)
	if !ok {
		return nil, fmt.Errorf("column has type %s, expected utf8", col.DataType())
	}

	geoms := make([]geom.Geometry, strs.Len())
	for i := range strs.Len() {
		if strs.IsNull(i) {
			continue
		}

		g, err := codec.ParseWKT(strs.Value(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		geoms[i] = g
	}

	wkbArr, err := geoarrow.EncodeColumn(s.mem, geoms)
	if err != nil {
		return nil, err
	}
	defer wkbArr.Release()

	return withColumns(rec, column{arrow.Field{Name: "wkb", Type: arrow.BinaryTypes.Binary, Nullable: true}, wkbArr})
}

type column struct {
	field arrow.Field
	arr   arrow.Array
}

// withColumns returns rec with extra columns appended.
func withColumns(rec arrow.RecordBatch, extra ...column) (arrow.RecordBatch, error) {
	schema := rec.Schema()
	fields := append([]arrow.Field(nil), schema.Fields()...)
	cols := append([]arrow.Array(nil), rec.Columns()...)

	for _, c := range extra {
		if schema.HasField(c.field.Name) {
			return nil, fmt.Errorf("column %s already exists in records", c.field.Name)
		}
		fields = append(fields, c.field)
		cols = append(cols, c.arr)
	}

	md := schema.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), nil
}
