package spatialdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"geosql/pkg/dialect"
	"geosql/pkg/geoarrow"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/duckdb/duckdb-go/v2"
)

// QueryArrow runs query on DuckDB and returns the result as record batches.
// geometryColumn must be selected as WKB, e.g. through Rule.ReadExpr.
func (s *Store) QueryArrow(ctx context.Context, geometryColumn, query string, args ...any) (*geoarrow.Collection, error) {
	if s.connector == nil {
		return nil, fmt.Errorf("%w: arrow results on %s", dialect.ErrFunctionUnsupported, s.rule.Name)
	}

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get db connection: %w", err)
	}
	defer conn.Close()

	ar, err := duckdb.NewArrowFromConn(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow from duckdb: %w", err)
	}

	reader, err := ar.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute arrow query: %w", err)
	}
	defer reader.Release()

	var recs []arrow.RecordBatch
	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		recs = append(recs, rec)
	}

	if err := reader.Err(); err != nil {
		release(recs)
		return nil, fmt.Errorf("error reading arrow records: %w", err)
	}

	out, err := geoarrow.NewCollection(recs, geometryColumn, 0)
	if err != nil {
		release(recs)
		return nil, err
	}
	return out, nil
}

// LoadArrow appends the rows of c to an existing DuckDB table. Columns are
// matched by name and the WKB geometry column is converted to GEOMETRY.
func (s *Store) LoadArrow(ctx context.Context, table string, c *geoarrow.Collection) (int64, error) {
	if s.connector == nil {
		return 0, fmt.Errorf("%w: arrow ingest on %s", dialect.ErrFunctionUnsupported, s.rule.Name)
	}

	records := c.GetRecords()
	if len(records) == 0 {
		return 0, fmt.Errorf("collection has no records")
	}

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get db connection: %w", err)
	}
	defer conn.Close()

	ar, err := duckdb.NewArrowFromConn(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow from duckdb: %w", err)
	}

	rr, err := array.NewRecordReader(records[0].Schema(), records)
	if err != nil {
		return 0, fmt.Errorf("failed to create record reader: %w", err)
	}
	defer rr.Release()

	// the view only exists on this connection
	view := fmt.Sprintf("geosql_load_%d", time.Now().UnixNano())
	releaseView, err := ar.RegisterView(rr, view)
	if err != nil {
		return 0, fmt.Errorf("failed to register arrow view: %w", err)
	}
	defer releaseView()

	col := s.rule.QuoteIdentifier(c.GeometryColumn())
	query := fmt.Sprintf("INSERT INTO %s BY NAME SELECT * REPLACE (ST_GeomFromWKB(%s) AS %s) FROM %s",
		s.rule.QuoteIdentifier(table), col, col, s.rule.QuoteIdentifier(view))

	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return 0, fmt.Errorf("duckdb connection does not support exec")
	}

	res, err := execer.ExecContext(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to load records into %s: %w", table, err)
	}
	return res.RowsAffected()
}

func release(recs []arrow.RecordBatch) {
	for _, rec := range recs {
		rec.Release()
	}
}
