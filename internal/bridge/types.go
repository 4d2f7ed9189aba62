// Package bridge converts between host column types and values and the
// columnar engine's scalar types and values.
//
// Supported host types: bool, "char" (as an 8-bit integer), int2, int4, int8,
// bpchar, text, varchar, date and timestamp. Dates and timestamps shift
// between the host epoch (2000-01-01) and the engine epoch (1970-01-01).
// On the read side float4, float8 and numeric results are normalized to the
// host float8 representation.
package bridge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
)

// Epoch offsets between 1970-01-01 and 2000-01-01.
const (
	EpochOffsetDays   = 10957
	MicrosPerDay      = 86_400_000_000
	EpochOffsetMicros = EpochOffsetDays * MicrosPerDay
)

var engineTypeNames = map[host.OID]string{
	host.BoolOID:      "BOOLEAN",
	host.CharOID:      "TINYINT",
	host.Int2OID:      "SMALLINT",
	host.Int4OID:      "INTEGER",
	host.Int8OID:      "INT8",
	host.BPCharOID:    "TEXT",
	host.TextOID:      "TEXT",
	host.VarcharOID:   "TEXT",
	host.DateOID:      "DATE",
	host.TimestampOID: "TIMESTAMP",
}

// TypeName returns the engine type used to store a host column type.
func TypeName(oid host.OID) (string, error) {
	name, ok := engineTypeNames[oid]
	if !ok {
		return "", unsupported(oid)
	}
	return name, nil
}

// Supported reports whether TypeName accepts oid.
func Supported(oid host.OID) bool {
	_, ok := engineTypeNames[oid]
	return ok
}

var decimalRe = regexp.MustCompile(`^(DECIMAL|NUMERIC)(\(\s*\d+\s*,\s*\d+\s*\))?$`)

// HostType maps an engine result type name to the host type it is decoded
// into. It is used when the host does not supply a result descriptor.
func HostType(engineType string) (host.OID, error) {
	name := strings.ToUpper(strings.TrimSpace(engineType))
	switch name {
	case "BOOLEAN", "BOOL":
		return host.BoolOID, nil
	case "TINYINT", "INT1":
		return host.CharOID, nil
	case "SMALLINT", "INT2":
		return host.Int2OID, nil
	case "INTEGER", "INT4", "INT":
		return host.Int4OID, nil
	case "BIGINT", "INT8":
		return host.Int8OID, nil
	case "VARCHAR", "TEXT", "STRING":
		return host.TextOID, nil
	case "DATE":
		return host.DateOID, nil
	case "TIMESTAMP":
		return host.TimestampOID, nil
	case "FLOAT", "REAL", "FLOAT4", "DOUBLE", "FLOAT8", "HUGEINT":
		return host.Float8OID, nil
	}
	if decimalRe.MatchString(name) {
		return host.Float8OID, nil
	}
	return host.InvalidOID, errors.Newf(errors.ErrorTypeUnsupportedType, "unsupported engine type: %s", engineType).
		WithDetail("engine_type", engineType)
}

// OutputDesc returns the descriptor results are delivered with: a copy of
// desc where float4 and numeric columns become float8. The input is not
// modified.
func OutputDesc(desc *host.TupleDesc) *host.TupleDesc {
	out := desc.Copy()
	for i := range out.Attrs {
		if isFloating(out.Attrs[i].TypeOID) {
			out.Attrs[i].TypeOID = host.Float8OID
			out.Attrs[i].TypeMod = -1
		}
	}
	return out
}

func isFloating(oid host.OID) bool {
	return oid == host.Float4OID || oid == host.Float8OID || oid == host.NumericOID
}

func unsupported(oid host.OID) error {
	return errors.New(errors.ErrorTypeUnsupportedType, fmt.Sprintf("unsupported quack type: %d", uint32(oid))).
		WithDetail("oid", uint32(oid))
}
