package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens a SQLite database. Use ":memory:" for an in-memory
// database.
func OpenSQLite(path string) (*DB, error) {
	return OpenSQLiteDriver("sqlite3", path)
}

// OpenSQLiteDriver opens a SQLite database through a registered driver
// name. Callers that need loadable extensions register their own
// sqlite3.SQLiteDriver and pass its name here.
func OpenSQLiteDriver(driverName, path string) (*DB, error) {
	dbx, err := sqlx.Connect(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return New(dbx, SQLiteDialect{}), nil
}
