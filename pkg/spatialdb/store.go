// Package spatialdb executes spatial fragments against MySQL, PostGIS or
// DuckDB through database/sql, with the dialect rule resolved for the
// connected server version.
//
// The Arrow paths (QueryArrow, LoadArrow) use duckdb.NewArrowFromConn, which
// is only compiled with the duckdb_arrow build tag:
//
//	go build -tags duckdb_arrow ./...
package spatialdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"geosql/pkg/dialect"
	"geosql/pkg/schema"
	"log"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db        *sql.DB
	rule      dialect.Rule
	connector *duckdb.Connector
}

// NewStore wraps an already opened database. The rule is used as given.
func NewStore(db *sql.DB, rule dialect.Rule) *Store {
	return &Store{db: db, rule: rule}
}

// Open connects to the configured database and probes its version so that
// version-gated function spellings are resolved once.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	rule, err := dialect.ForDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}

	s := &Store{rule: rule}

	switch rule.Name {
	case dialect.MySQL:
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql connector: %w", err)
		}
		s.db = sql.OpenDB(connector)

	case dialect.Postgres:
		pc, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}
		s.db = stdlib.OpenDB(*pc)

	case dialect.DuckDB:
		stmts, err := schema.EnableExtension(rule)
		if err != nil {
			return nil, err
		}

		connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
			for _, stmt := range stmts {
				if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
					return fmt.Errorf("failed to load spatial extension: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create duckdb connector: %w", err)
		}
		s.connector = connector
		s.db = sql.OpenDB(connector)
	}

	if err := s.db.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", rule.Name, err)
	}

	if err := s.probeVersion(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Printf("Connected to %s %s", s.rule.Name, s.rule.ServerVersion)
	return s, nil
}

func (s *Store) probeVersion(ctx context.Context) error {
	var banner string
	if err := s.db.QueryRowContext(ctx, s.rule.VersionQuery).Scan(&banner); err != nil {
		return fmt.Errorf("failed to query %s version: %w", s.rule.Name, err)
	}

	rule, err := s.rule.WithServerVersion(banner)
	if err != nil {
		return err
	}
	s.rule = rule

	if _, err := rule.SphericalFn(); err != nil {
		log.Printf("Warning: %v", err)
	}
	return nil
}

func (s *Store) Rule() dialect.Rule {
	return s.rule
}

func (s *Store) ServerVersion() string {
	return s.rule.ServerVersion
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.connector != nil {
		if cerr := s.connector.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
