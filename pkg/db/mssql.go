package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
)

// OpenMSSQL opens a Microsoft SQL Server database.
func OpenMSSQL(connStr string) (*DB, error) {
	dbx, err := sqlx.Connect("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open mssql database: %w", err)
	}
	return New(dbx, MSSQLDialect{}), nil
}
