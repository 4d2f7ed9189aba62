package memhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/quack/pkg/host"
)

// CreateTable runs a CREATE TABLE statement through the utility hooks.
func (s *Session) CreateTable(ctx context.Context, stmt *host.CreateStmt) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.backend.Hooks.ProcessUtility(ctx, stmt, createTableText(stmt))
	})
}

// Utility runs any other utility statement through the utility hooks.
func (s *Session) Utility(ctx context.Context, stmt host.UtilityStmt, queryString string) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.backend.Hooks.ProcessUtility(ctx, stmt, queryString)
	})
}

// Insert stores rows into table through the relation's access method. Each
// row lists Go values in column order; nil is NULL.
func (s *Session) Insert(ctx context.Context, table string, rows ...[]interface{}) error {
	rel, err := s.host.RelationByName(table)
	if err != nil {
		return err
	}
	return s.run(ctx, func(ctx context.Context) error {
		insert := s.host.heapInsert
		if rel.AccessMethod != HeapAccessMethod {
			am, ok := s.backend.AccessMethods.Lookup(rel.AccessMethod)
			if !ok {
				return fmt.Errorf("access method %q does not exist", rel.AccessMethod)
			}
			insert = func(rel *host.Relation, slot *host.TupleSlot) error {
				return am.TupleInsert(ctx, rel, slot)
			}
		}

		slot := host.NewTupleSlot(rel.Desc)
		for _, row := range rows {
			if err := host.FillSlot(slot, row); err != nil {
				return err
			}
			if err := insert(rel, slot); err != nil {
				return err
			}
		}
		return nil
	})
}

// Select runs a read statement through the executor hooks. memhost has no
// planner: tables lists the relations the query text reads, and desc, when
// given, describes the result columns.
func (s *Session) Select(ctx context.Context, sql string, tables []string, desc *host.TupleDesc, dest host.DestReceiver) error {
	rtable := make([]host.RangeTblEntry, 0, len(tables)+1)
	for _, name := range tables {
		rel, err := s.host.RelationByName(name)
		if err != nil {
			return err
		}
		rtable = append(rtable, host.RangeTblEntry{Kind: host.RTERelation, RelID: rel.ID})
	}
	if len(tables) > 1 {
		rtable = append(rtable, host.RangeTblEntry{Kind: host.RTEJoin})
	}
	qd := &host.QueryDesc{
		Operation:  host.CmdSelect,
		SourceText: sql,
		RangeTable: rtable,
		TupleDesc:  desc,
		Dest:       dest,
	}
	return s.run(ctx, func(ctx context.Context) error {
		return s.backend.Hooks.ExecutorRun(ctx, qd)
	})
}

// standardExecutor scans a single heap relation. It is all the planner
// memhost has.
func (s *Session) standardExecutor(ctx context.Context, qd *host.QueryDesc) error {
	if qd.Operation != host.CmdSelect || len(qd.RangeTable) != 1 || qd.RangeTable[0].Kind != host.RTERelation {
		return fmt.Errorf("memhost cannot execute %q", qd.SourceText)
	}
	rel, err := s.host.Relation(ctx, qd.RangeTable[0].RelID)
	if err != nil {
		return err
	}
	if rel.AccessMethod != HeapAccessMethod {
		return fmt.Errorf("memhost cannot scan relation %q using access method %q", rel.Name, rel.AccessMethod)
	}

	s.host.mu.RLock()
	rows := append([][]interface{}(nil), s.host.heap[rel.ID]...)
	s.host.mu.RUnlock()

	if err := qd.Dest.Startup(ctx, qd.Operation, rel.Desc); err != nil {
		return err
	}
	slot := host.NewTupleSlot(rel.Desc)
	for _, row := range rows {
		if err := host.FillSlot(slot, row); err != nil {
			return err
		}
		if err := qd.Dest.ReceiveSlot(ctx, slot); err != nil {
			return err
		}
	}
	return qd.Dest.Shutdown(ctx)
}

func (s *Session) standardUtility(ctx context.Context, stmt host.UtilityStmt, queryString string) error {
	switch st := stmt.(type) {
	case *host.CreateStmt:
		return s.host.createRelation(ctx, st)
	default:
		return nil
	}
}

func createTableText(stmt *host.CreateStmt) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if stmt.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(stmt.Name)
	b.WriteString(" (")
	for i, col := range stmt.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name + " " + col.TypeName)
	}
	b.WriteString(")")
	if stmt.AccessMethod != "" {
		b.WriteString(" USING " + stmt.AccessMethod)
	}
	return b.String()
}
