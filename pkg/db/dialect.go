package db

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Dialect captures the per-backend SQL differences the wrapper needs:
// placeholder style, identifier quoting, column type mapping and table
// listing. Query text itself always passes through untouched.
type Dialect interface {
	Name() string
	Placeholder(n int) string // 1-based position
	Quote(ident string) string
	ColumnType(t arrow.DataType) string
	TableNamesQuery() string
	HasTableQuery() string
}

func quoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string            { return "sqlite3" }
func (SQLiteDialect) Placeholder(int) string  { return "?" }
func (SQLiteDialect) Quote(id string) string  { return quoteDouble(id) }
func (SQLiteDialect) TableNamesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name"
}
func (SQLiteDialect) HasTableQuery() string {
	return "SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?"
}

func (SQLiteDialect) ColumnType(t arrow.DataType) string {
	switch t.ID() {
	case arrow.INT64, arrow.INT32, arrow.BOOL:
		return "INTEGER"
	case arrow.FLOAT64, arrow.FLOAT32:
		return "REAL"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BLOB"
	case arrow.TIMESTAMP:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

type PostgresDialect struct{}

func (PostgresDialect) Name() string           { return "pgx" }
func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (PostgresDialect) Quote(id string) string { return quoteDouble(id) }
func (PostgresDialect) TableNamesQuery() string {
	return "SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename"
}
func (PostgresDialect) HasTableQuery() string {
	return "SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = $1"
}

func (PostgresDialect) ColumnType(t arrow.DataType) string {
	switch t.ID() {
	case arrow.INT64, arrow.INT32:
		return "BIGINT"
	case arrow.FLOAT64, arrow.FLOAT32:
		return "DOUBLE PRECISION"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BYTEA"
	case arrow.TIMESTAMP:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

type MSSQLDialect struct{}

func (MSSQLDialect) Name() string           { return "sqlserver" }
func (MSSQLDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (MSSQLDialect) Quote(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
func (MSSQLDialect) TableNamesQuery() string {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"
}
func (MSSQLDialect) HasTableQuery() string {
	return "SELECT count(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME = @p1"
}

func (MSSQLDialect) ColumnType(t arrow.DataType) string {
	switch t.ID() {
	case arrow.INT64, arrow.INT32:
		return "BIGINT"
	case arrow.FLOAT64, arrow.FLOAT32:
		return "FLOAT"
	case arrow.BOOL:
		return "BIT"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "VARBINARY(MAX)"
	case arrow.TIMESTAMP:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

type DuckDBDialect struct{}

func (DuckDBDialect) Name() string           { return "duckdb" }
func (DuckDBDialect) Placeholder(int) string { return "?" }
func (DuckDBDialect) Quote(id string) string { return quoteDouble(id) }
func (DuckDBDialect) TableNamesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name"
}
func (DuckDBDialect) HasTableQuery() string {
	return "SELECT count(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?"
}

func (DuckDBDialect) ColumnType(t arrow.DataType) string {
	switch t.ID() {
	case arrow.INT64, arrow.INT32:
		return "BIGINT"
	case arrow.FLOAT64, arrow.FLOAT32:
		return "DOUBLE"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "BLOB"
	case arrow.TIMESTAMP:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}
