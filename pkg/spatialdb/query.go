package spatialdb

import (
	"context"
	"fmt"
	"geosql/pkg/predicate"
	"geosql/pkg/scope"
	"sort"
	"strings"
)

// Query is a SELECT over one table. An empty Columns list selects every
// column; spatial columns are always read in the form the codec decodes.
type Query struct {
	Table       string
	Columns     []string
	Projections []scope.Projection
	Where       []predicate.Fragment
	Limit       int
}

// Render builds the SQL text and its bindings in the driver's placeholder
// style.
func (s *Store) Render(sc *scope.Scopes, q Query) (string, []any, error) {
	if q.Table == "" {
		return "", nil, fmt.Errorf("query has no table")
	}

	var (
		selectList []string
		args       []any
	)

	wildcard := len(q.Columns) == 0 && len(q.Projections) == 0
	for _, p := range q.Projections {
		if p.NeedsWildcard && len(q.Columns) == 0 {
			wildcard = true
		}
	}

	if wildcard {
		selectList = append(selectList, s.star(sc))
	}
	for _, col := range q.Columns {
		selectList = append(selectList, s.column(sc, col))
	}
	for _, p := range q.Projections {
		selectList = append(selectList, p.SQL)
		args = append(args, p.Bindings...)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(selectList, ", "), s.rule.QuoteIdentifier(q.Table))

	if len(q.Where) > 0 {
		conds := make([]string, len(q.Where))
		for i, f := range q.Where {
			conds[i] = f.SQL
			args = append(args, f.Bindings...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	return s.rule.Rebind(sb.String()), args, nil
}

func (s *Store) star(sc *scope.Scopes) string {
	if s.rule.ReadExprFormat == "" {
		return "*"
	}

	// only DuckDB wraps geometry reads, and it supports * REPLACE
	replaced := make([]string, 0, len(sc.Columns()))
	for _, col := range sc.Columns() {
		replaced = append(replaced, fmt.Sprintf("%s AS %s", s.rule.ReadExpr(col), s.rule.QuoteIdentifier(col)))
	}
	return fmt.Sprintf("* REPLACE (%s)", strings.Join(replaced, ", "))
}

func (s *Store) column(sc *scope.Scopes, col string) string {
	quoted := s.rule.QuoteIdentifier(col)
	if !sc.IsSpatial(col) || s.rule.ReadExprFormat == "" {
		return quoted
	}
	return fmt.Sprintf("%s AS %s", s.rule.ReadExpr(col), quoted)
}

// Select runs q and returns one map per row with spatial columns decoded
// into geometries.
func (s *Store) Select(ctx context.Context, sc *scope.Scopes, q Query) ([]map[string]any, error) {
	query, args, err := s.Render(sc, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}

		if err := sc.Hydrate(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(out), err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows from %s: %w", q.Table, err)
	}
	return out, nil
}

// RenderInsert builds an INSERT for attrs. Geometry values go through the
// dialect's geometry construction call, columns are emitted in sorted order.
func (s *Store) RenderInsert(sc *scope.Scopes, table string, attrs map[string]any) (string, []any, error) {
	if len(attrs) == 0 {
		return "", nil, fmt.Errorf("nothing to insert into %s", table)
	}

	values, err := sc.InsertValues(attrs)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var (
		quoted       = make([]string, len(cols))
		placeholders = make([]string, len(cols))
		args         []any
	)
	for i, col := range cols {
		quoted[i] = s.rule.QuoteIdentifier(col)

		if f, ok := values[col].(predicate.Fragment); ok {
			placeholders[i] = f.SQL
			args = append(args, f.Bindings...)
			continue
		}
		placeholders[i] = "?"
		args = append(args, values[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.rule.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	return s.rule.Rebind(query), args, nil
}

// Insert writes one row and returns the number of affected rows.
func (s *Store) Insert(ctx context.Context, sc *scope.Scopes, table string, attrs map[string]any) (int64, error) {
	query, args, err := s.RenderInsert(sc, table, attrs)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return res.RowsAffected()
}

// Exec runs DDL statements, e.g. the output of the schema package, in order.
func (s *Store) Exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}
