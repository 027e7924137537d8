package db

import (
	"database/sql"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/jmoiron/sqlx"
)

// OpenDuckDB opens a DuckDB database. An empty path means in-memory.
func OpenDuckDB(path string) (*DB, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create duckdb connector: %w", err)
	}

	dbx := sqlx.NewDb(sql.OpenDB(connector), "duckdb")
	out := New(dbx, DuckDBDialect{})
	out.closers = append(out.closers, connector)
	return out, nil
}
