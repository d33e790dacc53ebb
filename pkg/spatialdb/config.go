package spatialdb

import (
	"fmt"
	"geosql/pkg/dialect"
	"log"
	"net"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Config describes the database a Store connects to. DSN, when set, wins
// over the individual connection fields.
type Config struct {
	Dialect  string
	DSN      string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// LoadConfig loads the given .env files (".env" when none are named) into
// the process environment and reads the configuration from it. Missing
// files are not an error.
func LoadConfig(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	return ConfigFromEnv()
}

// ConfigFromEnv reads GEOSQL_DIALECT, GEOSQL_DSN and the DB_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Dialect:  os.Getenv("GEOSQL_DIALECT"),
		DSN:      os.Getenv("GEOSQL_DSN"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_NAME"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
	}
	if cfg.Dialect == "" {
		cfg.Dialect = dialect.DuckDB
	}
	return cfg
}

// DataSourceName renders the driver specific DSN for the configured dialect.
func (c Config) DataSourceName() (string, error) {
	rule, err := dialect.ForDialect(c.Dialect)
	if err != nil {
		return "", err
	}

	switch rule.Name {
	case dialect.MySQL:
		if c.DSN != "" {
			if _, err := mysql.ParseDSN(c.DSN); err != nil {
				return "", fmt.Errorf("invalid mysql dsn: %w", err)
			}
			return c.DSN, nil
		}

		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(orDefault(c.Host, "localhost"), orDefault(c.Port, "3306"))
		mc.DBName = c.Name
		mc.User = c.User
		mc.Passwd = c.Password
		mc.ParseTime = true
		return mc.FormatDSN(), nil

	case dialect.Postgres:
		dsn := c.DSN
		if dsn == "" {
			parts := []string{
				"host=" + pgValue(orDefault(c.Host, "localhost")),
				"port=" + pgValue(orDefault(c.Port, "5432")),
			}
			if c.Name != "" {
				parts = append(parts, "dbname="+pgValue(c.Name))
			}
			if c.User != "" {
				parts = append(parts, "user="+pgValue(c.User))
			}
			if c.Password != "" {
				parts = append(parts, "password="+pgValue(c.Password))
			}
			dsn = strings.Join(parts, " ")
		}

		if _, err := pgx.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("invalid postgres dsn: %w", err)
		}
		return dsn, nil

	case dialect.DuckDB:
		// empty path is an in-memory database
		if c.DSN != "" {
			return c.DSN, nil
		}
		return c.Name, nil
	}

	return "", fmt.Errorf("%w: %s", dialect.ErrUnsupportedDialect, rule.Name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// pgValue quotes a keyword/value connection string value when needed.
func pgValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
