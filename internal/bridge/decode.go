package bridge

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
)

// DecodeValue converts one non-NULL engine value into a host value of type
// oid. Text comes back as a freshly allocated varlena; dates and timestamps
// are shifted back to the host epoch; float4, float8 and numeric targets all
// produce float8.
func DecodeValue(v interface{}, oid host.OID) (host.Datum, error) {
	if v == nil {
		return host.Datum{}, errors.New(errors.ErrorTypeConversion, "NULL reached value conversion")
	}

	switch oid {
	case host.BoolOID:
		b, ok := v.(bool)
		if !ok {
			return host.Datum{}, mismatch(v, oid)
		}
		return host.BoolDatum(b), nil
	case host.CharOID:
		i, err := toInt64(v, oid, math.MinInt8, math.MaxInt8)
		return host.CharDatum(int8(i)), err
	case host.Int2OID:
		i, err := toInt64(v, oid, math.MinInt16, math.MaxInt16)
		return host.Int16Datum(int16(i)), err
	case host.Int4OID:
		i, err := toInt64(v, oid, math.MinInt32, math.MaxInt32)
		return host.Int32Datum(int32(i)), err
	case host.Int8OID:
		i, err := toInt64(v, oid, math.MinInt64, math.MaxInt64)
		return host.Int64Datum(i), err
	case host.BPCharOID, host.TextOID, host.VarcharOID:
		switch s := v.(type) {
		case string:
			return host.VarlenaDatum(host.NewVarlena([]byte(s))), nil
		case []byte:
			return host.VarlenaDatum(host.NewVarlena(s)), nil
		}
		return host.Datum{}, mismatch(v, oid)
	case host.DateOID:
		var days int32
		switch d := v.(type) {
		case engine.Date:
			days = d.Days
		case time.Time:
			days = engine.DateFromTime(d).Days
		default:
			return host.Datum{}, mismatch(v, oid)
		}
		date, err := DecodeDate(days)
		return host.DateDatum(date), err
	case host.TimestampOID:
		var micros int64
		switch ts := v.(type) {
		case engine.Timestamp:
			micros = ts.Micros
		case time.Time:
			micros = engine.TimestampFromTime(ts).Micros
		default:
			return host.Datum{}, mismatch(v, oid)
		}
		ts, err := DecodeTimestamp(micros)
		return host.TimestampDatum(ts), err
	case host.Float4OID, host.Float8OID, host.NumericOID:
		f, err := toFloat64(v, oid)
		return host.Float8Datum(f), err
	default:
		return host.Datum{}, unsupported(oid)
	}
}

// DecodeRow fills slot from the current row of rows. NULLs bypass
// conversion. slot.Desc must already be the output descriptor (see
// OutputDesc).
func DecodeRow(rows engine.Rows, slot *host.TupleSlot) error {
	for i, attr := range slot.Desc.Attrs {
		v := rows.Value(i)
		if v == nil {
			slot.SetNull(i)
			continue
		}
		d, err := DecodeValue(v, attr.TypeOID)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return e.WithDetail("column", attr.Name)
			}
			return err
		}
		slot.Set(i, d)
	}
	return nil
}

func toInt64(v interface{}, oid host.OID, lo, hi int64) (int64, error) {
	var i int64
	switch n := v.(type) {
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case int:
		i = int64(n)
	case uint8:
		i = int64(n)
	case uint16:
		i = int64(n)
	case uint32:
		i = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, outOfRange(v, oid)
		}
		i = int64(n)
	case *big.Int:
		if !n.IsInt64() {
			return 0, outOfRange(v, oid)
		}
		i = n.Int64()
	default:
		return 0, mismatch(v, oid)
	}
	if i < lo || i > hi {
		return 0, outOfRange(v, oid)
	}
	return i, nil
}

func toFloat64(v interface{}, oid host.OID) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case *big.Int:
		f, _ := decimal.NewFromBigInt(n, 0).Float64()
		return f, nil
	case engine.Decimal:
		if n.Value == nil {
			return 0, mismatch(v, oid)
		}
		f, _ := decimal.NewFromBigInt(n.Value, -int32(n.Scale)).Float64()
		return f, nil
	default:
		return 0, mismatch(v, oid)
	}
}

func mismatch(v interface{}, oid host.OID) error {
	return errors.Newf(errors.ErrorTypeConversion, "cannot convert engine value of type %T to %s", v, oid).
		WithDetail("oid", uint32(oid))
}

func outOfRange(v interface{}, oid host.OID) error {
	return errors.Newf(errors.ErrorTypeConversion, "value %v out of range for %s", v, oid).
		WithDetail("oid", uint32(oid))
}
