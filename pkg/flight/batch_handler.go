package flight

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetSpill buffers oversized record streams on disk so a large
// DoPut does not have to fit in memory at once.
type ParquetSpill struct {
	tempDir    string
	files      []string
	schema     *arrow.Schema
	batchIndex int
}

// NewParquetSpill creates a spill area in a fresh temporary directory.
func NewParquetSpill() (*ParquetSpill, error) {
	tempDir, err := os.MkdirTemp("", "spatialdb_flight_spill_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %v", err)
	}

	return &ParquetSpill{
		tempDir: tempDir,
	}, nil
}

// Add writes one record batch to its own parquet file.
func (h *ParquetSpill) Add(rec arrow.RecordBatch) error {
	if h.schema == nil {
		h.schema = rec.Schema()
	}

	h.batchIndex++
	filePath := filepath.Join(h.tempDir, fmt.Sprintf("batch_%d.parquet", h.batchIndex))

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %v", err)
	}
	defer f.Close()

	writer, err := pqarrow.NewFileWriter(
		h.schema,
		f,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %v", err)
	}
	defer writer.Close()

	if err := writer.WriteBuffered(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %v", err)
	}
	log.Printf("Spilled batch %d with %d rows to %s", h.batchIndex, rec.NumRows(), filePath)

	h.files = append(h.files, filePath)
	return nil
}

// HasSpilled reports whether anything landed on disk.
func (h *ParquetSpill) HasSpilled() bool {
	return len(h.files) > 0
}

// ReadRecords reads every spilled file back, in write order. The
// caller owns the returned batches.
func (h *ParquetSpill) ReadRecords(ctx context.Context) ([]arrow.RecordBatch, error) {
	if len(h.files) == 0 {
		return nil, fmt.Errorf("no parquet files to read")
	}

	var out []arrow.RecordBatch
	for _, filePath := range h.files {
		recs, err := readParquetFile(ctx, filePath)
		if err != nil {
			for _, r := range out {
				r.Release()
			}
			return nil, err
		}
		out = append(out, recs...)
	}

	return out, nil
}

func readParquetFile(ctx context.Context, filePath string) ([]arrow.RecordBatch, error) {
	pf, err := file.OpenParquetFile(filePath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file %s: %v", filePath, err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{
		BatchSize: 10000,
	}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader for %s: %v", filePath, err)
	}

	recordReader, err := reader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get record reader for %s: %v", filePath, err)
	}
	defer recordReader.Release()

	var out []arrow.RecordBatch
	for recordReader.Next() {
		rec := recordReader.RecordBatch()
		rec.Retain()
		out = append(out, rec)
	}
	if err := recordReader.Err(); err != nil {
		for _, r := range out {
			r.Release()
		}
		return nil, fmt.Errorf("error reading records from %s: %v", filePath, err)
	}

	return out, nil
}

// Cleanup removes the temporary directory and all files
func (h *ParquetSpill) Cleanup() error {
	if h.tempDir != "" {
		return os.RemoveAll(h.tempDir)
	}
	return nil
}
