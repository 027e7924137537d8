package db

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// OpenPostgres opens a PostgreSQL database through the pgx stdlib
// driver. connStr accepts both URL and keyword/value forms.
func OpenPostgres(connStr string) (*DB, error) {
	dbx, err := sqlx.Connect("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	return New(dbx, PostgresDialect{}), nil
}
