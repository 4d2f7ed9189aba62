package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/quack/internal/bridge"
	"github.com/ajitpratap0/quack/pkg/host"
)

// timestampType is a timestamp without time zone.
var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond}

// ArrowType returns the Arrow type a host column is exported as.
func ArrowType(oid host.OID) (arrow.DataType, error) {
	switch oid {
	case host.BoolOID:
		return arrow.FixedWidthTypes.Boolean, nil
	case host.CharOID:
		return arrow.PrimitiveTypes.Int8, nil
	case host.Int2OID:
		return arrow.PrimitiveTypes.Int16, nil
	case host.Int4OID:
		return arrow.PrimitiveTypes.Int32, nil
	case host.Int8OID:
		return arrow.PrimitiveTypes.Int64, nil
	case host.TextOID, host.VarcharOID, host.BPCharOID:
		return arrow.BinaryTypes.String, nil
	case host.DateOID:
		return arrow.FixedWidthTypes.Date32, nil
	case host.TimestampOID:
		return timestampType, nil
	case host.Float4OID, host.Float8OID, host.NumericOID:
		return arrow.PrimitiveTypes.Float64, nil
	}
	return nil, fmt.Errorf("no arrow type for host type %s", oid)
}

// ArrowSchema converts a host descriptor into an Arrow schema. Every field is
// nullable.
func ArrowSchema(desc *host.TupleDesc) (*arrow.Schema, error) {
	fields := make([]arrow.Field, desc.NumAttrs())
	for i, attr := range desc.Attrs {
		dt, err := ArrowType(attr.TypeOID)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", attr.Name, err)
		}
		fields[i] = arrow.Field{Name: attr.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// appendSlot appends one row to the builder's columns.
func appendSlot(rb *array.RecordBuilder, slot *host.TupleSlot) error {
	for i, attr := range slot.Desc.Attrs {
		if err := appendDatum(rb.Field(i), attr.TypeOID, slot.Values[i], slot.IsNull[i]); err != nil {
			return fmt.Errorf("column %s: %w", attr.Name, err)
		}
	}
	return nil
}

func appendDatum(b array.Builder, oid host.OID, d host.Datum, isNull bool) error {
	if isNull {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(d.Bool())
	case *array.Int8Builder:
		b.Append(d.Char())
	case *array.Int16Builder:
		b.Append(d.Int16())
	case *array.Int32Builder:
		b.Append(d.Int32())
	case *array.Int64Builder:
		b.Append(d.Int64())
	case *array.Float64Builder:
		b.Append(d.Float8())
	case *array.StringBuilder:
		if d.Varlena() == nil {
			return fmt.Errorf("%s datum has no varlena", oid)
		}
		data, err := d.Varlena().Data()
		if err != nil {
			return err
		}
		b.BinaryBuilder.Append(data)
	case *array.Date32Builder:
		days, err := bridge.EncodeDate(d.Date())
		if err != nil {
			return err
		}
		b.Append(arrow.Date32(days))
	case *array.TimestampBuilder:
		micros, err := bridge.EncodeTimestamp(d.Timestamp())
		if err != nil {
			return err
		}
		b.Append(arrow.Timestamp(micros))
	default:
		return fmt.Errorf("unexpected arrow builder %T for host type %s", b, oid)
	}
	return nil
}
