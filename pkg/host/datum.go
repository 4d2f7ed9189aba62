package host

import "math"

// DateADT is a host date: days since 2000-01-01.
type DateADT int32

// Timestamp is a host timestamp without time zone: microseconds since
// 2000-01-01 00:00:00.
type Timestamp int64

// Reserved infinity encodings.
const (
	DateNoBegin      DateADT   = math.MinInt32
	DateNoEnd        DateADT   = math.MaxInt32
	TimestampNoBegin Timestamp = math.MinInt64
	TimestampNoEnd   Timestamp = math.MaxInt64
)

// IsFinite reports whether d is neither -infinity nor +infinity.
func (d DateADT) IsFinite() bool { return d != DateNoBegin && d != DateNoEnd }

// IsFinite reports whether t is neither -infinity nor +infinity.
func (t Timestamp) IsFinite() bool { return t != TimestampNoBegin && t != TimestampNoEnd }

// Datum is one host value. Pass-by-value types live in a single machine word;
// variable-length types reference a Varlena. The column's type OID says how to
// read it: a Datum does not know its own type.
type Datum struct {
	word uint64
	ref  *Varlena
}

// BoolDatum wraps a bool.
func BoolDatum(b bool) Datum {
	if b {
		return Datum{word: 1}
	}
	return Datum{}
}

// CharDatum wraps the 1-byte "char" type.
func CharDatum(v int8) Datum { return Datum{word: uint64(uint8(v))} }

// Int16Datum wraps an int2.
func Int16Datum(v int16) Datum { return Datum{word: uint64(uint16(v))} }

// Int32Datum wraps an int4.
func Int32Datum(v int32) Datum { return Datum{word: uint64(uint32(v))} }

// Int64Datum wraps an int8.
func Int64Datum(v int64) Datum { return Datum{word: uint64(v)} }

// Float8Datum wraps a float8.
func Float8Datum(v float64) Datum { return Datum{word: math.Float64bits(v)} }

// DateDatum wraps a date.
func DateDatum(d DateADT) Datum { return Datum{word: uint64(uint32(d))} }

// TimestampDatum wraps a timestamp.
func TimestampDatum(t Timestamp) Datum { return Datum{word: uint64(t)} }

// VarlenaDatum wraps a variable-length value.
func VarlenaDatum(v *Varlena) Datum { return Datum{ref: v} }

// TextDatum builds a text Datum with a 4-byte header.
func TextDatum(s string) Datum { return VarlenaDatum(NewVarlena([]byte(s))) }

// Bool reads the Datum as a bool.
func (d Datum) Bool() bool { return d.word != 0 }

// Char reads the Datum as "char".
func (d Datum) Char() int8 { return int8(uint8(d.word)) }

// Int16 reads the Datum as an int2.
func (d Datum) Int16() int16 { return int16(uint16(d.word)) }

// Int32 reads the Datum as an int4.
func (d Datum) Int32() int32 { return int32(uint32(d.word)) }

// Int64 reads the Datum as an int8.
func (d Datum) Int64() int64 { return int64(d.word) }

// Float8 reads the Datum as a float8.
func (d Datum) Float8() float64 { return math.Float64frombits(d.word) }

// Date reads the Datum as a date.
func (d Datum) Date() DateADT { return DateADT(int32(uint32(d.word))) }

// Timestamp reads the Datum as a timestamp.
func (d Datum) Timestamp() Timestamp { return Timestamp(int64(d.word)) }

// Varlena returns the referenced variable-length value, or nil.
func (d Datum) Varlena() *Varlena { return d.ref }
