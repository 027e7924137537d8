// Package frame provides the in-memory tabular container returned by
// database queries. A DataFrame wraps Apache Arrow record batches; a
// GeoDataFrame adds a decoded geometry column and a spatial reference.
package frame

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

type DataFrame struct {
	records    []arrow.RecordBatch
	columns    []string
	sourceFile *string
	tempDir    string
}

// NewDataFrame wraps record batches into a DataFrame. The frame takes
// ownership of the batches; all batches must share a schema.
func NewDataFrame(recs []arrow.RecordBatch) (*DataFrame, error) {
	out := &DataFrame{records: recs}

	if len(recs) > 0 {
		schema := recs[0].Schema()
		for _, rec := range recs[1:] {
			if !rec.Schema().Equal(schema) {
				return nil, fmt.Errorf("record batches have mismatched schemas")
			}
		}
		for _, f := range schema.Fields() {
			out.columns = append(out.columns, f.Name)
		}
	}

	return out, nil
}

// Get Apache Arrow Records of the DataFrame
func (d *DataFrame) Records() []arrow.RecordBatch {
	return d.records
}

// Column names in schema order.
func (d *DataFrame) Columns() []string {
	return d.columns
}

// ColumnIndex returns the schema index of a column, or -1.
func (d *DataFrame) ColumnIndex(name string) int {
	for i, c := range d.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame carries the named column.
func (d *DataFrame) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// NumRows is the total row count across all record batches.
func (d *DataFrame) NumRows() int {
	n := 0
	for _, rec := range d.records {
		n += int(rec.NumRows())
	}
	return n
}

func (d *DataFrame) Empty() bool {
	return d.NumRows() == 0
}

// Value returns the Go value at (row, col). Nulls come back as nil.
func (d *DataFrame) Value(row, col int) (any, error) {
	if col < 0 || col >= len(d.columns) {
		return nil, fmt.Errorf("column index %d out of range", col)
	}

	for _, rec := range d.records {
		n := int(rec.NumRows())
		if row < n {
			return columnValue(rec.Column(col), row)
		}
		row -= n
	}

	return nil, fmt.Errorf("row index out of range")
}

// ColumnValues returns every value of the named column.
func (d *DataFrame) ColumnValues(name string) ([]any, error) {
	col := d.ColumnIndex(name)
	if col < 0 {
		return nil, fmt.Errorf("column %s not found", name)
	}

	out := make([]any, 0, d.NumRows())
	for _, rec := range d.records {
		arr := rec.Column(col)
		for i := 0; i < int(rec.NumRows()); i++ {
			v, err := columnValue(arr, i)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// Release the Apache Arrow Records buffer and any sink temp dir.
func (d *DataFrame) Release() {
	for _, rec := range d.records {
		rec.Release()
	}
	d.records = nil

	if d.tempDir != "" {
		os.RemoveAll(d.tempDir)
		d.tempDir = ""
	}
}

// Sink the record batches into a parquet file
func (d *DataFrame) Sink(prefix string) error {
	if len(d.records) == 0 {
		return fmt.Errorf("records are empty")
	}

	tempDir, err := os.MkdirTemp("", prefix+"_*")
	if err != nil {
		return fmt.Errorf("failed to create temporary directory: %v", err)
	}
	d.tempDir = tempDir

	filePath := filepath.Join(tempDir, prefix+".parquet")

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %v", err)
	}
	defer f.Close()

	schema := d.records[0].Schema()
	writer, err := pqarrow.NewFileWriter(
		schema,
		f,
		parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %v", err)
	}
	defer writer.Close()

	for _, rec := range d.records {
		if err := writer.WriteBuffered(rec); err != nil {
			return fmt.Errorf("failed to write record batch: %v", err)
		}
	}

	d.sourceFile = &filePath
	return nil
}

// SourceFile returns the parquet file path if the frame was sunk.
func (d *DataFrame) SourceFile() *string {
	return d.sourceFile
}

// IsMaterialized reports whether the frame has been sunk to a file.
func (d *DataFrame) IsMaterialized() bool {
	return d.sourceFile != nil
}

// WithStringColumn returns a new frame with an extra string column
// appended. The value slice must cover every row. The receiver keeps
// ownership of its own batches.
func (d *DataFrame) WithStringColumn(name string, values []string) (*DataFrame, error) {
	if len(values) != d.NumRows() {
		return nil, fmt.Errorf("expected %d values for column %s, got %d", d.NumRows(), name, len(values))
	}
	if d.HasColumn(name) {
		return nil, fmt.Errorf("column %s already exists", name)
	}
	if len(d.records) == 0 {
		return nil, fmt.Errorf("records are empty")
	}

	var out []arrow.RecordBatch
	offset := 0

	for _, rec := range d.records {
		n := int(rec.NumRows())

		builder := array.NewStringBuilder(pool())
		builder.AppendValues(values[offset:offset+n], nil)
		arr := builder.NewArray()
		builder.Release()
		offset += n

		fields := append([]arrow.Field{}, rec.Schema().Fields()...)
		fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String})

		cols := make([]arrow.Array, 0, rec.NumCols()+1)
		for i := 0; i < int(rec.NumCols()); i++ {
			cols = append(cols, rec.Column(i))
		}
		cols = append(cols, arr)

		out = append(out, array.NewRecordBatch(arrow.NewSchema(fields, nil), cols, rec.NumRows()))
		arr.Release()
	}

	return NewDataFrame(out)
}

// DropColumn returns a new frame without the named column.
func (d *DataFrame) DropColumn(name string) (*DataFrame, error) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %s not found", name)
	}
	if len(d.records) == 0 {
		return nil, fmt.Errorf("records are empty")
	}

	var out []arrow.RecordBatch
	for _, rec := range d.records {
		var fields []arrow.Field
		var cols []arrow.Array
		for i := 0; i < int(rec.NumCols()); i++ {
			if i == idx {
				continue
			}
			fields = append(fields, rec.Schema().Field(i))
			cols = append(cols, rec.Column(i))
		}
		out = append(out, array.NewRecordBatch(arrow.NewSchema(fields, nil), cols, rec.NumRows()))
	}

	return NewDataFrame(out)
}
