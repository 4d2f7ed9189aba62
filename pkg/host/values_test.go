package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFromTime(t *testing.T) {
	assert.Equal(t, DateADT(0), DateFromTime(time.Date(2000, 1, 1, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, DateADT(-10957), DateFromTime(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, DateADT(-1), DateFromTime(time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC)))

	d := DateFromTime(time.Date(1600, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(1600, 2, 29, 0, 0, 0, 0, time.UTC), d.Time())
}

func TestTimestampFromTime(t *testing.T) {
	ts := time.Date(1969, 12, 31, 23, 59, 59, 999999000, time.UTC)
	got := TimestampFromTime(ts)
	assert.Equal(t, Timestamp(-10957*microsPerDay-1), got)
	assert.True(t, ts.Equal(got.Time()))
	assert.True(t, TimestampNoEnd.Time().IsZero())
}

func TestToDatum_RangeChecks(t *testing.T) {
	_, err := ToDatum(Int2OID, 40000)
	require.Error(t, err)

	_, err = ToDatum(Int4OID, "12")
	require.Error(t, err)

	d, err := ToDatum(CharOID, int8(-5))
	require.NoError(t, err)
	assert.Equal(t, int8(-5), d.Char())
}

func TestSlotGoValues(t *testing.T) {
	desc := NewTupleDesc(
		Attribute{Name: "a", TypeOID: Int4OID, TypeMod: -1},
		Attribute{Name: "b", TypeOID: TextOID, TypeMod: -1},
		Attribute{Name: "c", TypeOID: DateOID, TypeMod: -1},
	)
	slot := NewTupleSlot(desc)
	for i, v := range []interface{}{int32(7), "x", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)} {
		d, err := ToDatum(desc.Attrs[i].TypeOID, v)
		require.NoError(t, err)
		slot.Set(i, d)
	}
	slot.SetNull(1)

	values, err := slot.GoValues()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(7), nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, values)
}
