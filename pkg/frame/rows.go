package frame

import (
	"database/sql"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// FromRows drains a database/sql result set into a DataFrame. Column
// types are inferred from the scanned values; mixed int/float columns
// widen to float64 and all-NULL columns come back as strings. The rows
// are closed before returning.
func FromRows(rows *sql.Rows) (*DataFrame, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		// Drivers may reuse byte buffers between rows.
		row := make([]any, len(cols))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = append([]byte{}, b...)
			} else {
				row[i] = v
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	fields := make([]arrow.Field, len(cols))
	for i, name := range cols {
		fields[i] = arrow.Field{Name: name, Type: columnType(data, i), Nullable: true}
	}

	schema := arrow.NewSchema(fields, nil)
	builder := array.NewRecordBuilder(pool(), schema)
	defer builder.Release()

	for _, row := range data {
		for i, v := range row {
			if err := appendValue(builder.Field(i), v); err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i], err)
			}
		}
	}

	rec := builder.NewRecordBatch()
	return NewDataFrame([]arrow.RecordBatch{rec})
}
