package bridge

import (
	"math"
	"unicode/utf8"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
)

// EncodeValue appends one non-NULL host value to the appender's current row.
// Text payloads are passed without their length header; dates and timestamps
// are shifted to the engine epoch.
func EncodeValue(app engine.Appender, oid host.OID, d host.Datum) error {
	switch oid {
	case host.BoolOID:
		return app.AppendBool(d.Bool())
	case host.CharOID:
		return app.AppendInt8(d.Char())
	case host.Int2OID:
		return app.AppendInt16(d.Int16())
	case host.Int4OID:
		return app.AppendInt32(d.Int32())
	case host.Int8OID:
		return app.AppendInt64(d.Int64())
	case host.BPCharOID, host.TextOID, host.VarcharOID:
		data, err := textPayload(d)
		if err != nil {
			return err
		}
		return app.AppendVarchar(data)
	case host.DateOID:
		days, err := EncodeDate(d.Date())
		if err != nil {
			return err
		}
		return app.AppendDate(engine.Date{Days: days})
	case host.TimestampOID:
		micros, err := EncodeTimestamp(d.Timestamp())
		if err != nil {
			return err
		}
		return app.AppendTimestamp(engine.Timestamp{Micros: micros})
	default:
		return unsupported(oid)
	}
}

// EncodeRow appends every column of slot and completes the row. When any
// column fails the partial row is discarded, so nothing of it reaches the
// engine.
func EncodeRow(app engine.Appender, slot *host.TupleSlot) error {
	for i, attr := range slot.Desc.Attrs {
		var err error
		if slot.IsNull[i] {
			err = app.AppendNull()
		} else {
			err = EncodeValue(app, attr.TypeOID, slot.Values[i])
		}
		if err != nil {
			app.DiscardRow()
			if e, ok := err.(*errors.Error); ok {
				return e.WithDetail("column", attr.Name)
			}
			return err
		}
	}
	return app.EndRow()
}

func textPayload(d host.Datum) ([]byte, error) {
	v := d.Varlena()
	if v == nil {
		return nil, errors.New(errors.ErrorTypeConversion, "text value has no payload")
	}
	data, err := v.Data()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConversion, "invalid text value")
	}
	if !utf8.Valid(data) {
		return nil, errors.New(errors.ErrorTypeConversion, "text value is not valid UTF-8")
	}
	return data, nil
}

// EncodeDate shifts a host date to engine days since 1970-01-01.
func EncodeDate(d host.DateADT) (int32, error) {
	if !d.IsFinite() {
		return 0, errors.New(errors.ErrorTypeConversion, "infinite dates are not supported")
	}
	days := int64(d) + EpochOffsetDays
	if days > math.MaxInt32 {
		return 0, errors.Newf(errors.ErrorTypeConversion, "date out of range: %d", int32(d))
	}
	return int32(days), nil
}

// DecodeDate shifts engine days since 1970-01-01 back to a host date.
func DecodeDate(days int32) (host.DateADT, error) {
	d := int64(days) - EpochOffsetDays
	if d <= math.MinInt32 || d >= math.MaxInt32 {
		return 0, errors.Newf(errors.ErrorTypeConversion, "date out of range: %d days since 1970-01-01", days)
	}
	return host.DateADT(d), nil
}

// EncodeTimestamp shifts a host timestamp to engine microseconds since
// 1970-01-01.
func EncodeTimestamp(ts host.Timestamp) (int64, error) {
	if !ts.IsFinite() {
		return 0, errors.New(errors.ErrorTypeConversion, "infinite timestamps are not supported")
	}
	if int64(ts) > math.MaxInt64-EpochOffsetMicros {
		return 0, errors.Newf(errors.ErrorTypeConversion, "timestamp out of range: %d", int64(ts))
	}
	return int64(ts) + EpochOffsetMicros, nil
}

// DecodeTimestamp shifts engine microseconds since 1970-01-01 back to a host
// timestamp.
func DecodeTimestamp(micros int64) (host.Timestamp, error) {
	if micros <= math.MinInt64+EpochOffsetMicros {
		return 0, errors.Newf(errors.ErrorTypeConversion, "timestamp out of range: %d microseconds since 1970-01-01", micros)
	}
	return host.Timestamp(micros - EpochOffsetMicros), nil
}
