package frame

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func pool() memory.Allocator {
	return memory.NewGoAllocator()
}

// columnValue extracts a Go value from an Arrow column at a given index
func columnValue(col arrow.Array, idx int) (any, error) {
	if col.IsNull(idx) {
		return nil, nil
	}

	switch c := col.(type) {
	case *array.Float64:
		return c.Value(idx), nil
	case *array.Float32:
		return float64(c.Value(idx)), nil
	case *array.Int64:
		return c.Value(idx), nil
	case *array.Int32:
		return int64(c.Value(idx)), nil
	case *array.String:
		return c.Value(idx), nil
	case *array.LargeString:
		return c.Value(idx), nil
	case *array.Boolean:
		return c.Value(idx), nil
	case *array.Binary:
		return append([]byte{}, c.Value(idx)...), nil
	case *array.LargeBinary:
		return append([]byte{}, c.Value(idx)...), nil
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(idx).ToTime(unit), nil
	default:
		return nil, fmt.Errorf("unsupported column type: %T", col)
	}
}

// appendValue appends a scanned database value to an Arrow builder,
// tolerating the numeric width differences drivers produce.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch builder := b.(type) {
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			builder.Append(n)
		case float32:
			builder.Append(float64(n))
		case int64:
			builder.Append(float64(n))
		case int32:
			builder.Append(float64(n))
		default:
			return fmt.Errorf("cannot append %T to float64 column", v)
		}
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			builder.Append(n)
		case int32:
			builder.Append(int64(n))
		case int:
			builder.Append(int64(n))
		default:
			return fmt.Errorf("cannot append %T to int64 column", v)
		}
	case *array.StringBuilder:
		switch s := v.(type) {
		case string:
			builder.Append(s)
		case []byte:
			builder.Append(string(s))
		default:
			builder.Append(fmt.Sprint(v))
		}
	case *array.BooleanBuilder:
		switch t := v.(type) {
		case bool:
			builder.Append(t)
		case int64:
			builder.Append(t != 0)
		default:
			return fmt.Errorf("cannot append %T to boolean column", v)
		}
	case *array.BinaryBuilder:
		raw, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("cannot append %T to binary column", v)
		}
		builder.Append(raw)
	case *array.TimestampBuilder:
		ts, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("cannot append %T to timestamp column", v)
		}
		builder.Append(arrow.Timestamp(ts.UnixMicro()))
	default:
		return fmt.Errorf("unsupported builder type: %T", b)
	}

	return nil
}

// columnType infers the Arrow type of a result column from every
// scanned value. Dynamically typed drivers can hand back a mix of ints
// and floats in one column; those widen to float64. Any other mix
// falls back to string.
func columnType(data [][]any, col int) arrow.DataType {
	var out arrow.DataType
	for _, row := range data {
		v := row[col]
		if v == nil {
			continue
		}
		t := arrowType(v)
		switch {
		case out == nil:
			out = t
		case arrow.TypeEqual(out, t):
		case isNumeric(out) && isNumeric(t):
			out = arrow.PrimitiveTypes.Float64
		default:
			return arrow.BinaryTypes.String
		}
	}
	if out == nil {
		return arrow.BinaryTypes.String
	}
	return out
}

func isNumeric(t arrow.DataType) bool {
	return t.ID() == arrow.INT64 || t.ID() == arrow.FLOAT64
}

// arrowType infers the Arrow column type for a scanned database value.
func arrowType(v any) arrow.DataType {
	switch v.(type) {
	case int64, int32, int:
		return arrow.PrimitiveTypes.Int64
	case float64, float32:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case []byte:
		return arrow.BinaryTypes.Binary
	case time.Time:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}
