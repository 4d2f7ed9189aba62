package columnar

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/quack/pkg/host"
)

// DefaultBatchSize is the number of rows per record batch.
const DefaultBatchSize = 64 * 1024

// recordWriter receives complete record batches.
type recordWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

// recordSink buffers rows into Arrow record batches and hands full batches
// to a format-specific writer created once the schema is known.
type recordSink struct {
	batchSize int
	mem       memory.Allocator
	open      func(schema *arrow.Schema) (recordWriter, error)

	schema  *arrow.Schema
	builder *array.RecordBuilder
	writer  recordWriter
	pending int
	rows    int64
}

func newRecordSink(batchSize int, open func(schema *arrow.Schema) (recordWriter, error)) *recordSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &recordSink{
		batchSize: batchSize,
		mem:       memory.NewGoAllocator(),
		open:      open,
	}
}

// Startup implements host.DestReceiver.
func (s *recordSink) Startup(ctx context.Context, op host.CmdType, desc *host.TupleDesc) error {
	schema, err := ArrowSchema(desc)
	if err != nil {
		return err
	}
	w, err := s.open(schema)
	if err != nil {
		return err
	}
	s.schema = schema
	s.writer = w
	s.builder = array.NewRecordBuilder(s.mem, schema)
	return nil
}

// ReceiveSlot implements host.DestReceiver.
func (s *recordSink) ReceiveSlot(ctx context.Context, slot *host.TupleSlot) error {
	if s.builder == nil {
		return fmt.Errorf("sink received a row before startup")
	}
	if err := appendSlot(s.builder, slot); err != nil {
		return err
	}
	s.pending++
	s.rows++
	if s.pending >= s.batchSize {
		return s.flush()
	}
	return nil
}

// Shutdown implements host.DestReceiver: it writes the last batch and the
// format footer.
func (s *recordSink) Shutdown(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	err := s.flush()
	s.builder.Release()
	if closeErr := s.writer.Close(); err == nil {
		err = closeErr
	}
	s.writer = nil
	return err
}

// Rows returns the number of rows received.
func (s *recordSink) Rows() int64 { return s.rows }

// Schema returns the Arrow schema, once Startup has run.
func (s *recordSink) Schema() *arrow.Schema { return s.schema }

func (s *recordSink) flush() error {
	if s.pending == 0 {
		return nil
	}
	rec := s.builder.NewRecord()
	defer rec.Release()
	s.pending = 0
	return s.writer.Write(rec)
}

// ArrowSink writes results in the Arrow IPC file format.
type ArrowSink struct {
	*recordSink
}

// NewArrowSink creates a sink writing to w. w is not closed.
func NewArrowSink(w io.Writer, batchSize int) *ArrowSink {
	return &ArrowSink{recordSink: newRecordSink(batchSize, func(schema *arrow.Schema) (recordWriter, error) {
		fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(memory.NewGoAllocator()))
		if err != nil {
			return nil, fmt.Errorf("failed to create arrow writer: %w", err)
		}
		return fw, nil
	})}
}

// ParquetOptions configures a ParquetSink.
type ParquetOptions struct {
	// BatchSize is the number of rows per row group.
	BatchSize int
	// Compression is none, snappy, gzip, zstd, lz4 or brotli.
	Compression string
}

// ParquetSink writes results as a Parquet file.
type ParquetSink struct {
	*recordSink
}

// NewParquetSink creates a sink writing to w. w is not closed.
func NewParquetSink(w io.Writer, opts ParquetOptions) *ParquetSink {
	return &ParquetSink{recordSink: newRecordSink(opts.BatchSize, func(schema *arrow.Schema) (recordWriter, error) {
		codec, err := parquetCodec(opts.Compression)
		if err != nil {
			return nil, err
		}
		props := parquet.NewWriterProperties(parquet.WithCompression(codec))
		arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(memory.NewGoAllocator()))
		fw, err := pqarrow.NewFileWriter(schema, writerOnly{w}, props, arrowProps)
		if err != nil {
			return nil, fmt.Errorf("failed to create parquet writer: %w", err)
		}
		return fw, nil
	})}
}

func parquetCodec(name string) (compress.Compression, error) {
	switch name {
	case "", "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unsupported parquet compression: %s", name)
}

// writerOnly hides Close so closing the parquet file leaves w open.
type writerOnly struct {
	io.Writer
}
