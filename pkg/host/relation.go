package host

import "context"

// Relation is the host's metadata for one table.
type Relation struct {
	// ID is the relation OID.
	ID OID
	// Node is the physical storage node (relfilenode).
	Node OID
	// Name is the unqualified table name.
	Name string
	// AccessMethod is the table access method name, e.g. "heap" or "quack".
	AccessMethod string
	// Desc lists the columns in attribute order.
	Desc *TupleDesc
}

// Catalog resolves relation metadata.
type Catalog interface {
	// Relation returns metadata for a relation OID.
	Relation(ctx context.Context, id OID) (*Relation, error)
}

// TypeResolver maps a type name as written in DDL to its OID.
type TypeResolver interface {
	ResolveType(ctx context.Context, name string) (OID, error)
}

// AdvisoryLocker acquires transaction-scoped advisory locks. The lock is held
// until the current top-level transaction ends. Acquiring a key the caller
// already holds succeeds immediately.
type AdvisoryLocker interface {
	AdvisoryXactLock(ctx context.Context, key int64) error
}

// TransactionState exposes the caller's current transaction nesting level.
type TransactionState interface {
	CurrentSubTransactionID() SubTransactionID
}
