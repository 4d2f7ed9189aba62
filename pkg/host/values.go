package host

import (
	"fmt"
	"math"
	"time"
)

const (
	microsPerDay = int64(24 * time.Hour / time.Microsecond)
	// unixEpochDays is 2000-01-01 counted in days since 1970-01-01.
	unixEpochDays = 10957
)

// epoch is the host's date and timestamp origin.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateFromTime converts the calendar date of t (in UTC) to a DateADT.
func DateFromTime(t time.Time) DateADT {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DateADT(floorDiv(day.Unix(), 86400) - unixEpochDays)
}

// Time returns midnight UTC of d. Infinite dates have no time.Time form and
// return the zero time.
func (d DateADT) Time() time.Time {
	if !d.IsFinite() {
		return time.Time{}
	}
	return epoch.AddDate(0, 0, int(d))
}

// TimestampFromTime converts t, read as UTC wall time, to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UTC().UnixMicro() - unixEpochDays*microsPerDay)
}

// Time returns t as a UTC time.Time. Infinite timestamps return the zero time.
func (t Timestamp) Time() time.Time {
	if !t.IsFinite() {
		return time.Time{}
	}
	return time.UnixMicro(int64(t) + unixEpochDays*microsPerDay).UTC()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ToDatum converts a Go value to a Datum of type oid. nil is not accepted;
// callers mark NULLs on the slot instead.
func ToDatum(oid OID, v interface{}) (Datum, error) {
	switch oid {
	case BoolOID:
		if b, ok := v.(bool); ok {
			return BoolDatum(b), nil
		}
	case CharOID, Int2OID, Int4OID, Int8OID:
		i, ok := asInt64(v)
		if !ok {
			break
		}
		lo, hi := intRange(oid)
		if i < lo || i > hi {
			return Datum{}, fmt.Errorf("value %d out of range for type %s", i, oid)
		}
		switch oid {
		case CharOID:
			return CharDatum(int8(i)), nil
		case Int2OID:
			return Int16Datum(int16(i)), nil
		case Int4OID:
			return Int32Datum(int32(i)), nil
		default:
			return Int64Datum(i), nil
		}
	case TextOID, VarcharOID, BPCharOID:
		switch s := v.(type) {
		case string:
			return TextDatum(s), nil
		case []byte:
			return VarlenaDatum(NewVarlena(s)), nil
		}
	case DateOID:
		switch d := v.(type) {
		case time.Time:
			return DateDatum(DateFromTime(d)), nil
		case DateADT:
			return DateDatum(d), nil
		}
	case TimestampOID:
		switch ts := v.(type) {
		case time.Time:
			return TimestampDatum(TimestampFromTime(ts)), nil
		case Timestamp:
			return TimestampDatum(ts), nil
		}
	case Float4OID, Float8OID, NumericOID:
		switch f := v.(type) {
		case float64:
			return Float8Datum(f), nil
		case float32:
			return Float8Datum(float64(f)), nil
		}
	default:
		return Datum{}, fmt.Errorf("no Go conversion for type %s", oid)
	}
	return Datum{}, fmt.Errorf("cannot use %T as %s", v, oid)
}

// FromDatum converts a Datum of type oid back to a Go value: bool, int8,
// int16, int32, int64, float64, string, or time.Time for dates and
// timestamps. Infinite dates and timestamps come back as DateADT and
// Timestamp.
func FromDatum(oid OID, d Datum) (interface{}, error) {
	switch oid {
	case BoolOID:
		return d.Bool(), nil
	case CharOID:
		return d.Char(), nil
	case Int2OID:
		return d.Int16(), nil
	case Int4OID:
		return d.Int32(), nil
	case Int8OID:
		return d.Int64(), nil
	case Float4OID, Float8OID, NumericOID:
		return d.Float8(), nil
	case TextOID, VarcharOID, BPCharOID:
		if d.Varlena() == nil {
			return nil, fmt.Errorf("%s datum has no varlena", oid)
		}
		data, err := d.Varlena().Data()
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case DateOID:
		if !d.Date().IsFinite() {
			return d.Date(), nil
		}
		return d.Date().Time(), nil
	case TimestampOID:
		if !d.Timestamp().IsFinite() {
			return d.Timestamp(), nil
		}
		return d.Timestamp().Time(), nil
	}
	return nil, fmt.Errorf("no Go conversion for type %s", oid)
}

// GoValues returns every column of slot as Go values, nil for NULL.
func (s *TupleSlot) GoValues() ([]interface{}, error) {
	out := make([]interface{}, len(s.Values))
	for i, attr := range s.Desc.Attrs {
		if s.IsNull[i] {
			continue
		}
		v, err := FromDatum(attr.TypeOID, s.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", attr.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case int64:
		return i, true
	}
	return 0, false
}

func intRange(oid OID) (int64, int64) {
	switch oid {
	case CharOID:
		return math.MinInt8, math.MaxInt8
	case Int2OID:
		return math.MinInt16, math.MaxInt16
	case Int4OID:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

// FillSlot clears slot and stores row, given as Go values in column order
// with nil for NULL.
func FillSlot(slot *TupleSlot, row []interface{}) error {
	if len(row) != slot.Desc.NumAttrs() {
		return fmt.Errorf("row has %d values but the descriptor has %d columns", len(row), slot.Desc.NumAttrs())
	}
	slot.Clear()
	for i, v := range row {
		if v == nil {
			continue
		}
		d, err := ToDatum(slot.Desc.Attrs[i].TypeOID, v)
		if err != nil {
			return fmt.Errorf("column %q: %w", slot.Desc.Attrs[i].Name, err)
		}
		slot.Set(i, d)
	}
	return nil
}
