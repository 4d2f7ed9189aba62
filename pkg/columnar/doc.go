// Package columnar exports query results in columnar and line-oriented
// formats.
//
// Every sink implements host.DestReceiver, so it can be handed to any query
// that streams rows: a quack session's ExecuteQuery, or a host executor.
//
//   - ArrowSink: Arrow IPC file format, one record batch per BatchSize rows
//   - ParquetSink: Parquet via pqarrow, one row group per batch
//   - JSONSink: one JSON object per row, keyed by column name
//
// # Type Mapping
//
// Host column types map to Arrow types as follows:
//
//	bool                    -> boolean
//	"char"                  -> int8
//	int2 / int4 / int8      -> int16 / int32 / int64
//	text / varchar / bpchar -> utf8
//	date                    -> date32
//	timestamp               -> timestamp[us]
//	float4 / float8/numeric -> float64
//
// Dates and timestamps are shifted to the Unix epoch; infinite values cannot
// be represented and fail the row.
//
// # Usage Example
//
//	sink := columnar.NewParquetSink(file, columnar.ParquetOptions{Compression: "zstd"})
//	rows, err := session.ExecuteQuery(ctx, "SELECT * FROM events", sink)
package columnar
