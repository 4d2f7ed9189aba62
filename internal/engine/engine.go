// Package engine wraps the embedded columnar engine behind small interfaces:
// a Driver opens database files, a Conn runs statements and creates
// Appenders, and Rows stream query results.
//
// The production driver is DuckDB (NewDuckDBDriver). Values crossing the
// interfaces use plain Go types plus Date, Timestamp and Decimal, so callers
// never depend on the driver's own representations.
package engine

import (
	"context"
	"math/big"
	"time"
)

// Driver opens engine database files.
type Driver interface {
	// Open opens or creates the database file at path.
	Open(ctx context.Context, path string) (Database, error)
}

// Database is an open engine database file.
type Database interface {
	Connect(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one connection into a Database. A Conn is used by one goroutine at
// a time.
type Conn interface {
	Exec(ctx context.Context, query string) error
	Query(ctx context.Context, query string) (Rows, error)
	// NewAppender binds an appender to an existing table.
	NewAppender(ctx context.Context, table string) (Appender, error)
	Close() error
}

// Column describes one result column.
type Column struct {
	Name string
	// TypeName is the engine type name, e.g. "INTEGER" or "DECIMAL(18,3)".
	TypeName string
}

// Rows is a forward-only result cursor.
type Rows interface {
	Columns() []Column
	// Next advances to the next row. It returns false at the end or on error.
	Next() bool
	// Value returns column col of the current row; nil means NULL.
	Value(col int) interface{}
	Err() error
	Close() error
}

// Appender ingests rows into one table. Values are appended column by column;
// EndRow completes the row. Rows become durable when the appender is flushed
// or closed and the enclosing engine transaction commits.
type Appender interface {
	AppendNull() error
	AppendBool(v bool) error
	AppendInt8(v int8) error
	AppendInt16(v int16) error
	AppendInt32(v int32) error
	AppendInt64(v int64) error
	AppendVarchar(v []byte) error
	AppendDate(v Date) error
	AppendTimestamp(v Timestamp) error
	EndRow() error
	// DiscardRow drops the values appended since the last EndRow.
	DiscardRow()
	Flush() error
	// Close flushes and releases the appender.
	Close() error
}

// Date is an engine date: days since 1970-01-01.
type Date struct {
	Days int32
}

// DateFromTime truncates t to its UTC date.
func DateFromTime(t time.Time) Date {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Date{Days: int32(midnight.Unix() / secondsPerDay)}
}

// Time returns the date as midnight UTC.
func (d Date) Time() time.Time {
	return time.Unix(int64(d.Days)*secondsPerDay, 0).UTC()
}

// Timestamp is an engine timestamp: microseconds since 1970-01-01 00:00:00.
type Timestamp struct {
	Micros int64
}

// TimestampFromTime converts t to microseconds since the Unix epoch.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Micros: t.UnixMicro()}
}

// Time returns the timestamp in UTC.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(ts.Micros).UTC()
}

// Decimal is a fixed-point engine value: Value * 10^-Scale.
type Decimal struct {
	Value *big.Int
	Scale uint8
}

const secondsPerDay = 86400
