package frame

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// LedgerEntry records one statement issued by a write operation and
// its result (usually a row or success count).
type LedgerEntry struct {
	SQL    string
	Result int64
}

// Ledger accumulates the statements a write operation issued. Write
// helpers return it so callers can inspect what actually ran.
type Ledger struct {
	entries []LedgerEntry
}

func (l *Ledger) Append(sql string, result int64) {
	l.entries = append(l.entries, LedgerEntry{SQL: sql, Result: result})
}

func (l *Ledger) Extend(other *Ledger) {
	if other == nil {
		return
	}
	l.entries = append(l.entries, other.entries...)
}

func (l *Ledger) Entries() []LedgerEntry {
	return l.entries
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// Frame renders the ledger as a two-column DataFrame (SQL, Result).
func (l *Ledger) Frame() (*DataFrame, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "SQL", Type: arrow.BinaryTypes.String},
		{Name: "Result", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	builder := array.NewRecordBuilder(pool(), schema)
	defer builder.Release()

	sqlBuilder := builder.Field(0).(*array.StringBuilder)
	resultBuilder := builder.Field(1).(*array.Int64Builder)
	for _, e := range l.entries {
		sqlBuilder.Append(e.SQL)
		resultBuilder.Append(e.Result)
	}

	rec := builder.NewRecordBatch()
	return NewDataFrame([]arrow.RecordBatch{rec})
}
