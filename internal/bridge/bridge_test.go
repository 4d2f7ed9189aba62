package bridge

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
)

// recordingAppender captures appended values the way the engine would see
// them.
type recordingAppender struct {
	row       []interface{}
	rows      [][]interface{}
	discarded int
}

func (a *recordingAppender) add(v interface{}) error {
	a.row = append(a.row, v)
	return nil
}

func (a *recordingAppender) AppendNull() error                        { return a.add(nil) }
func (a *recordingAppender) AppendBool(v bool) error                  { return a.add(v) }
func (a *recordingAppender) AppendInt8(v int8) error                  { return a.add(v) }
func (a *recordingAppender) AppendInt16(v int16) error                { return a.add(v) }
func (a *recordingAppender) AppendInt32(v int32) error                { return a.add(v) }
func (a *recordingAppender) AppendInt64(v int64) error                { return a.add(v) }
func (a *recordingAppender) AppendVarchar(v []byte) error             { return a.add(string(v)) }
func (a *recordingAppender) AppendDate(v engine.Date) error           { return a.add(v) }
func (a *recordingAppender) AppendTimestamp(v engine.Timestamp) error { return a.add(v) }
func (a *recordingAppender) Flush() error                             { return nil }
func (a *recordingAppender) Close() error                             { return nil }

func (a *recordingAppender) EndRow() error {
	a.rows = append(a.rows, a.row)
	a.row = nil
	return nil
}

func (a *recordingAppender) DiscardRow() {
	a.row = nil
	a.discarded++
}

func roundTrip(t *testing.T, oid host.OID, d host.Datum) host.Datum {
	t.Helper()
	app := &recordingAppender{}
	require.NoError(t, EncodeValue(app, oid, d))
	require.Len(t, app.row, 1)

	out, err := DecodeValue(app.row[0], oid)
	require.NoError(t, err)
	return out
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		oid  host.OID
		want string
	}{
		{host.BoolOID, "BOOLEAN"},
		{host.CharOID, "TINYINT"},
		{host.Int2OID, "SMALLINT"},
		{host.Int4OID, "INTEGER"},
		{host.Int8OID, "INT8"},
		{host.BPCharOID, "TEXT"},
		{host.TextOID, "TEXT"},
		{host.VarcharOID, "TEXT"},
		{host.DateOID, "DATE"},
		{host.TimestampOID, "TIMESTAMP"},
	}
	for _, tt := range tests {
		t.Run(tt.oid.String(), func(t *testing.T) {
			got, err := TypeName(tt.oid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := TypeName(host.Float8OID)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
	assert.Contains(t, err.Error(), "unsupported quack type: 701")
}

func TestRoundTrip_Integers(t *testing.T) {
	for _, v := range []int8{math.MinInt8, -1, 0, math.MaxInt8} {
		assert.Equal(t, v, roundTrip(t, host.CharOID, host.CharDatum(v)).Char())
	}
	for _, v := range []int16{math.MinInt16, 0, math.MaxInt16} {
		assert.Equal(t, v, roundTrip(t, host.Int2OID, host.Int16Datum(v)).Int16())
	}
	for _, v := range []int32{math.MinInt32, 0, math.MaxInt32} {
		assert.Equal(t, v, roundTrip(t, host.Int4OID, host.Int32Datum(v)).Int32())
	}
	for _, v := range []int64{math.MinInt64, -1, 0, math.MaxInt64} {
		assert.Equal(t, v, roundTrip(t, host.Int8OID, host.Int64Datum(v)).Int64())
	}
	assert.True(t, roundTrip(t, host.BoolOID, host.BoolDatum(true)).Bool())
	assert.False(t, roundTrip(t, host.BoolOID, host.BoolDatum(false)).Bool())
}

func TestRoundTrip_Text(t *testing.T) {
	short, err := host.NewShortVarlena([]byte("short header"))
	require.NoError(t, err)

	tests := []struct {
		name string
		oid  host.OID
		in   host.Datum
		want string
	}{
		{"empty", host.TextOID, host.TextDatum(""), ""},
		{"ascii", host.VarcharOID, host.TextDatum("a"), "a"},
		{"utf8", host.TextOID, host.TextDatum("quack 🦆"), "quack 🦆"},
		{"bpchar padding kept", host.BPCharOID, host.TextDatum("ab  "), "ab  "},
		{"short header", host.TextOID, host.VarlenaDatum(short), "short header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &recordingAppender{}
			require.NoError(t, EncodeValue(app, tt.oid, tt.in))
			assert.Equal(t, tt.want, app.row[0], "no header bytes reach the engine")

			out := roundTrip(t, tt.oid, tt.in)
			data, err := out.Varlena().Data()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assert.False(t, out.Varlena().IsShort())
		})
	}
}

func TestRoundTrip_Dates(t *testing.T) {
	tests := []struct {
		name     string
		host     host.DateADT
		wantDays int32
	}{
		{"unix epoch", -10957, 0},
		{"host epoch", 0, 10957},
		{"before 1970", -20000, -9043},
		{"far future", 2_000_000, 2_010_957},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := EncodeDate(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.host, roundTrip(t, host.DateOID, host.DateDatum(tt.host)).Date())
		})
	}

	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), engine.Date{Days: 10957}.Time())
}

func TestRoundTrip_Timestamps(t *testing.T) {
	tests := []struct {
		name       string
		host       host.Timestamp
		wantMicros int64
	}{
		{"unix epoch", -EpochOffsetMicros, 0},
		{"host epoch", 0, EpochOffsetMicros},
		{"one microsecond before host epoch", -1, EpochOffsetMicros - 1},
		{"largest shiftable", math.MaxInt64 - EpochOffsetMicros, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			micros, err := EncodeTimestamp(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMicros, micros)
			assert.Equal(t, tt.host, roundTrip(t, host.TimestampOID, host.TimestampDatum(tt.host)).Timestamp())
		})
	}
}

func TestEncode_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		oid  host.OID
		in   host.Datum
		want errors.ErrorType
	}{
		{"unsupported type", host.Float8OID, host.Float8Datum(1), errors.ErrorTypeUnsupportedType},
		{"infinite date", host.DateOID, host.DateDatum(host.DateNoEnd), errors.ErrorTypeConversion},
		{"date overflow", host.DateOID, host.DateDatum(math.MaxInt32 - 1), errors.ErrorTypeConversion},
		{"infinite timestamp", host.TimestampOID, host.TimestampDatum(host.TimestampNoBegin), errors.ErrorTypeConversion},
		{"timestamp overflow", host.TimestampOID, host.TimestampDatum(math.MaxInt64 - 1), errors.ErrorTypeConversion},
		{"missing text", host.TextOID, host.Int32Datum(1), errors.ErrorTypeConversion},
		{"invalid utf8", host.TextOID, host.VarlenaDatum(host.NewVarlena([]byte{0xff, 0xfe})), errors.ErrorTypeConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &recordingAppender{}
			err := EncodeValue(app, tt.oid, tt.in)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.want), "got %v", err)
			assert.Empty(t, app.row)
		})
	}
}

func TestEncodeRow_DiscardsPartialRow(t *testing.T) {
	desc := host.NewTupleDesc(
		host.Attribute{Name: "a", TypeOID: host.Int4OID},
		host.Attribute{Name: "d", TypeOID: host.DateOID},
	)
	slot := host.NewTupleSlot(desc)
	slot.Set(0, host.Int32Datum(1))
	slot.Set(1, host.DateDatum(host.DateNoBegin))

	app := &recordingAppender{}
	err := EncodeRow(app, slot)
	require.Error(t, err)
	assert.Equal(t, 1, app.discarded)
	assert.Empty(t, app.rows)

	var structured *errors.Error
	require.ErrorAs(t, err, &structured)
	assert.Equal(t, "d", structured.Details["column"])

	slot.SetNull(1)
	require.NoError(t, EncodeRow(app, slot))
	assert.Equal(t, [][]interface{}{{int32(1), nil}}, app.rows)
}

func TestDecode_NumericNormalizesToFloat8(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"double", 2.5, 2.5},
		{"float", float32(0.5), 0.5},
		{"decimal", engine.Decimal{Value: big.NewInt(12345), Scale: 3}, 12.345},
		{"negative decimal", engine.Decimal{Value: big.NewInt(-5), Scale: 1}, -0.5},
		{"hugeint", big.NewInt(1 << 40), float64(1 << 40)},
		{"integer", int32(7), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, oid := range []host.OID{host.Float4OID, host.Float8OID, host.NumericOID} {
				d, err := DecodeValue(tt.in, oid)
				require.NoError(t, err)
				assert.InDelta(t, tt.want, d.Float8(), 1e-12)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		oid  host.OID
	}{
		{"null", nil, host.Int4OID},
		{"int4 overflow", int64(math.MaxInt32) + 1, host.Int4OID},
		{"int2 overflow", int32(math.MaxInt16) + 1, host.Int2OID},
		{"hugeint overflow", new(big.Int).Lsh(big.NewInt(1), 70), host.Int8OID},
		{"uint64 overflow", uint64(math.MaxUint64), host.Int8OID},
		{"bool from int", int32(1), host.BoolOID},
		{"text from int", int32(1), host.TextOID},
		{"date underflow", engine.Date{Days: math.MinInt32}, host.DateOID},
		{"timestamp underflow", engine.Timestamp{Micros: math.MinInt64}, host.TimestampOID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeValue(tt.in, tt.oid)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
		})
	}

	_, err := DecodeValue(int32(1), host.OID(3802))
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
}

func TestHostType(t *testing.T) {
	tests := []struct {
		in   string
		want host.OID
	}{
		{"BOOLEAN", host.BoolOID},
		{"TINYINT", host.CharOID},
		{"SMALLINT", host.Int2OID},
		{"INTEGER", host.Int4OID},
		{"BIGINT", host.Int8OID},
		{"VARCHAR", host.TextOID},
		{"DATE", host.DateOID},
		{"TIMESTAMP", host.TimestampOID},
		{"DOUBLE", host.Float8OID},
		{"DECIMAL(18,3)", host.Float8OID},
		{"HUGEINT", host.Float8OID},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := HostType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := HostType("STRUCT(a INTEGER)")
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
}

func TestOutputDesc_DoesNotMutateInput(t *testing.T) {
	in := host.NewTupleDesc(
		host.Attribute{Name: "n", TypeOID: host.NumericOID, TypeMod: 655366},
		host.Attribute{Name: "r", TypeOID: host.Float4OID, TypeMod: -1},
		host.Attribute{Name: "i", TypeOID: host.Int4OID, TypeMod: -1},
	)
	out := OutputDesc(in)

	assert.Equal(t, host.NumericOID, in.Attrs[0].TypeOID)
	assert.Equal(t, host.Float8OID, out.Attrs[0].TypeOID)
	assert.Equal(t, int32(-1), out.Attrs[0].TypeMod)
	assert.Equal(t, host.Float8OID, out.Attrs[1].TypeOID)
	assert.Equal(t, host.Int4OID, out.Attrs[2].TypeOID)
}
