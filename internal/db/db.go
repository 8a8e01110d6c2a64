// Package db opens the embedded SQL databases that back session storage.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Drivers supported by Open.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Config holds database configuration.
type Config struct {
	Driver  string
	DataDir string
	DBName  string
}

// Path returns the database file path for cfg.
func (c Config) Path() string {
	ext := ".db"
	if c.Driver == DriverDuckDB {
		ext = ".duckdb"
	}
	return filepath.Join(c.DataDir, c.Driver, c.DBName+ext)
}

// Open creates the driver's data directory and opens the database.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Driver != DriverDuckDB && cfg.Driver != DriverSQLite {
		return nil, eris.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	path := cfg.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "db: create data directory")
	}

	conn, err := sql.Open(cfg.Driver, path)
	if err != nil {
		return nil, eris.Wrapf(err, "db: open %s", cfg.Driver)
	}

	if cfg.Driver == DriverSQLite {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := conn.Exec(pragma); err != nil {
				conn.Close()
				return nil, eris.Wrapf(err, "db: exec %s", pragma)
			}
		}
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, eris.Wrapf(err, "db: ping %s", cfg.Driver)
	}
	return conn, nil
}
