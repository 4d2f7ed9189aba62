package host

import "context"

// CmdType is the kind of statement being executed.
type CmdType int

// Statement kinds.
const (
	CmdUnknown CmdType = iota
	CmdSelect
	CmdInsert
	CmdUpdate
	CmdDelete
	CmdUtility
)

func (c CmdType) String() string {
	switch c {
	case CmdSelect:
		return "select"
	case CmdInsert:
		return "insert"
	case CmdUpdate:
		return "update"
	case CmdDelete:
		return "delete"
	case CmdUtility:
		return "utility"
	default:
		return "unknown"
	}
}

// RTEKind is the kind of a range table entry.
type RTEKind int

// Range table entry kinds.
const (
	RTERelation RTEKind = iota
	RTESubquery
	RTEJoin
	RTEFunction
	RTEValues
	RTECTE
)

// RangeTblEntry is one entry of a planned statement's range table.
type RangeTblEntry struct {
	Kind RTEKind
	// RelID is set for RTERelation entries.
	RelID OID
}

// QueryDesc is everything the executor needs to run one planned statement.
type QueryDesc struct {
	Operation  CmdType
	SourceText string
	RangeTable []RangeTblEntry
	// TupleDesc describes the result columns.
	TupleDesc *TupleDesc
	Dest      DestReceiver
}

// DestReceiver is the host's result sink. Startup is called once before any
// row, ReceiveSlot once per row and Shutdown once at the end.
type DestReceiver interface {
	Startup(ctx context.Context, op CmdType, desc *TupleDesc) error
	ReceiveSlot(ctx context.Context, slot *TupleSlot) error
	Shutdown(ctx context.Context) error
}

// UtilityStmt is a parsed utility (non-plannable) statement.
type UtilityStmt interface {
	utilityStmt()
}

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	// TypeName is the type as written, e.g. "integer" or "varchar".
	TypeName string
}

// CreateStmt is a parsed CREATE TABLE statement.
type CreateStmt struct {
	Schema       string
	Name         string
	Columns      []ColumnDef
	AccessMethod string
	IfNotExists  bool
}

func (*CreateStmt) utilityStmt() {}

// OtherUtilityStmt carries utility statements quack does not inspect.
type OtherUtilityStmt struct {
	Tag string
}

func (*OtherUtilityStmt) utilityStmt() {}
