package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/windfalllabs/spatialdb/pkg/frame"
)

// IfExists selects the behavior when the target table already exists.
type IfExists string

const (
	Fail    IfExists = "fail"
	Replace IfExists = "replace"
	Append  IfExists = "append"
)

type LoadOptions struct {
	IfExists IfExists
}

// LoadDataFrame creates a table from a DataFrame: CREATE TABLE from the
// Arrow schema plus row-by-row INSERTs inside one transaction. Every
// statement issued is reported in the returned ledger.
func (d *DB) LoadDataFrame(ctx context.Context, df *frame.DataFrame, table string, opts LoadOptions) (*frame.Ledger, error) {
	if opts.IfExists == "" {
		opts.IfExists = Fail
	}

	ledger := &frame.Ledger{}

	exists, err := d.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}

	if exists {
		switch opts.IfExists {
		case Fail:
			return nil, fmt.Errorf("table %s already exists", table)
		case Replace:
			drop := fmt.Sprintf("DROP TABLE %s", d.dialect.Quote(table))
			if _, err := d.Exec(ctx, drop); err != nil {
				return nil, fmt.Errorf("failed to drop table %s: %w", table, err)
			}
			ledger.Append(drop, 1)
			exists = false
		case Append:
			// Insert into the existing table below.
		default:
			return nil, fmt.Errorf("invalid if-exists mode: %s", opts.IfExists)
		}
	}

	recs := df.Records()
	if len(recs) == 0 {
		return nil, fmt.Errorf("records are empty")
	}
	schema := recs[0].Schema()

	if !exists {
		defs := make([]string, 0, len(schema.Fields()))
		for _, f := range schema.Fields() {
			defs = append(defs, fmt.Sprintf("%s %s", d.dialect.Quote(f.Name), d.dialect.ColumnType(f.Type)))
		}
		create := fmt.Sprintf("CREATE TABLE %s (%s)", d.dialect.Quote(table), strings.Join(defs, ", "))
		if _, err := d.Exec(ctx, create); err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		ledger.Append(create, 1)
	}

	cols := make([]string, 0, len(schema.Fields()))
	placeholders := make([]string, 0, len(schema.Fields()))
	for i, f := range schema.Fields() {
		cols = append(cols, d.dialect.Quote(f.Name))
		placeholders = append(placeholders, d.dialect.Placeholder(i+1))
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.dialect.Quote(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	tx, err := d.dbx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for row := 0; row < df.NumRows(); row++ {
		args := make([]any, len(cols))
		for col := range cols {
			v, err := df.Value(row, col)
			if err != nil {
				return nil, err
			}
			args[col] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("failed to insert row %d: %w", row, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	ledger.Append(insert, int64(inserted))

	return ledger, nil
}
