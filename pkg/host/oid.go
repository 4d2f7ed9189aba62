// Package host describes the contract between quack and the row-oriented host
// database it extends.
//
// The host owns the executor, planner, catalog and transaction manager. quack
// only sees them through the narrow types in this package: type OIDs and Datums,
// relation metadata, tuple slots, query descriptors with their result sinks,
// ordered handler chains for the executor and utility hooks, and transaction
// callbacks.
package host

import "fmt"

// OID is a host object identifier (relations, types, databases).
type OID uint32

// InvalidOID is the zero OID.
const InvalidOID OID = 0

// Built-in type OIDs understood by quack.
const (
	BoolOID      OID = 16
	CharOID      OID = 18
	Int8OID      OID = 20
	Int2OID      OID = 21
	Int4OID      OID = 23
	TextOID      OID = 25
	Float4OID    OID = 700
	Float8OID    OID = 701
	BPCharOID    OID = 1042
	VarcharOID   OID = 1043
	DateOID      OID = 1082
	TimestampOID OID = 1114
	NumericOID   OID = 1700
)

var typeNames = map[OID]string{
	BoolOID:      "bool",
	CharOID:      "char",
	Int8OID:      "int8",
	Int2OID:      "int2",
	Int4OID:      "int4",
	TextOID:      "text",
	Float4OID:    "float4",
	Float8OID:    "float8",
	BPCharOID:    "bpchar",
	VarcharOID:   "varchar",
	DateOID:      "date",
	TimestampOID: "timestamp",
	NumericOID:   "numeric",
}

// String returns the catalog name for built-in types and the number otherwise.
func (o OID) String() string {
	if name, ok := typeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint32(o))
}

// SubTransactionID identifies a (sub)transaction nesting level within one
// top-level transaction.
type SubTransactionID uint32

const (
	// InvalidSubTransactionID is used as the parent of the top-level transaction.
	InvalidSubTransactionID SubTransactionID = 0
	// TopSubTransactionID is the id of the top-level transaction itself.
	TopSubTransactionID SubTransactionID = 1
)
