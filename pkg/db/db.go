// Package db wraps relational database connections so SQL results come
// back as data frames and frames can be written back as tables. One
// constructor per supported backend; everything else is shared.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/windfalllabs/spatialdb/pkg/frame"
)

// DB owns a database connection and its dialect. It is released with
// Close; query results are owned by the caller.
type DB struct {
	dbx     *sqlx.DB
	dialect Dialect
	closers []io.Closer
}

// New wraps an open sqlx connection.
func New(dbx *sqlx.DB, dialect Dialect) *DB {
	return &DB{dbx: dbx, dialect: dialect}
}

// SQLX exposes the underlying connection for callers that need struct
// scanning or raw access.
func (d *DB) SQLX() *sqlx.DB {
	return d.dbx
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Query runs q and returns the result set as a DataFrame.
func (d *DB) Query(ctx context.Context, q string, args ...any) (*frame.DataFrame, error) {
	rows, err := d.dbx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return frame.FromRows(rows)
}

// Exec passes a statement through to the driver.
func (d *DB) Exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return d.dbx.ExecContext(ctx, q, args...)
}

// TableNames lists the user tables of the connected database.
func (d *DB) TableNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := d.dbx.SelectContext(ctx, &names, d.dialect.TableNamesQuery()); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// HasTable reports whether the named table exists.
func (d *DB) HasTable(ctx context.Context, name string) (bool, error) {
	var count int
	if err := d.dbx.GetContext(ctx, &count, d.dialect.HasTableQuery(), name); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return count > 0, nil
}

// Close releases the connection and any backend-specific resources.
func (d *DB) Close() error {
	err := d.dbx.Close()
	for _, c := range d.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
