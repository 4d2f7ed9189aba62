package pghost

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/quack/pkg/host"
)

// Session is one backend: a dedicated server connection plus the hook chains
// and access methods registered on it. Savepoints are pgx nested
// transactions. A Session is used by one goroutine at a time.
type Session struct {
	conn    *pgxpool.Conn
	catalog *Catalog
	backend *host.Backend

	// txs holds the open transaction and its savepoints, outermost first;
	// ids are their subtransaction ids.
	txs     []pgx.Tx
	ids     []host.SubTransactionID
	nextSub host.SubTransactionID
}

// NewSession acquires a connection from pool for a new backend.
func NewSession(ctx context.Context, pool *pgxpool.Pool, name string) (*Session, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	s := &Session{conn: conn}
	s.catalog = NewCatalog(s)

	dbID, err := s.catalog.DatabaseID(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to read database id: %w", err)
	}
	s.backend = &host.Backend{
		ID:            name,
		DatabaseID:    dbID,
		Catalog:       s.catalog,
		Types:         s.catalog,
		Locker:        s,
		Xact:          s,
		Hooks:         host.NewHooks(s.standardExecutor, s.standardUtility),
		AccessMethods: host.NewAccessMethodRegistry(),
	}
	return s, nil
}

// Backend returns the host services of this session.
func (s *Session) Backend() *host.Backend { return s.backend }

// Catalog returns the session's catalog.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Close rolls back any open transaction and returns the connection.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if len(s.txs) > 0 {
		err = s.Rollback(ctx)
	}
	s.conn.Release()
	return err
}

// current is where statements run: the innermost savepoint, or the bare
// connection outside a transaction.
func (s *Session) current() Querier {
	if n := len(s.txs); n > 0 {
		return s.txs[n-1]
	}
	return s.conn
}

// Exec implements Querier.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.current().Exec(ctx, sql, args...)
}

// Query implements Querier.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.current().Query(ctx, sql, args...)
}

// QueryRow implements Querier.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.current().QueryRow(ctx, sql, args...)
}

// AdvisoryXactLock implements host.AdvisoryLocker with the server's
// transaction-scoped advisory locks.
func (s *Session) AdvisoryXactLock(ctx context.Context, key int64) error {
	if len(s.txs) == 0 {
		return fmt.Errorf("advisory transaction locks need an open transaction")
	}
	_, err := s.txs[0].Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key)
	return err
}

// CurrentSubTransactionID implements host.TransactionState.
func (s *Session) CurrentSubTransactionID() host.SubTransactionID {
	if len(s.ids) == 0 {
		return host.InvalidSubTransactionID
	}
	return s.ids[len(s.ids)-1]
}

// Begin opens a transaction.
func (s *Session) Begin(ctx context.Context) error {
	if len(s.txs) > 0 {
		return fmt.Errorf("there is already a transaction in progress")
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	s.txs = []pgx.Tx{tx}
	s.ids = []host.SubTransactionID{host.TopSubTransactionID}
	s.nextSub = host.TopSubTransactionID + 1
	return nil
}

// Savepoint opens a subtransaction and returns its id.
func (s *Session) Savepoint(ctx context.Context) (host.SubTransactionID, error) {
	if len(s.txs) == 0 {
		return host.InvalidSubTransactionID, fmt.Errorf("SAVEPOINT can only be used in transaction blocks")
	}
	tx, err := s.txs[len(s.txs)-1].Begin(ctx)
	if err != nil {
		return host.InvalidSubTransactionID, err
	}
	parent := s.CurrentSubTransactionID()
	id := s.nextSub
	s.nextSub++
	s.txs = append(s.txs, tx)
	s.ids = append(s.ids, id)
	return id, s.backend.Hooks.FireSubXact(ctx, host.SubXactEventStart, id, parent)
}

// Release commits the innermost savepoint into its parent.
func (s *Session) Release(ctx context.Context) error {
	return s.endSavepoint(ctx, true)
}

// RollbackSavepoint aborts the innermost savepoint.
func (s *Session) RollbackSavepoint(ctx context.Context) error {
	return s.endSavepoint(ctx, false)
}

func (s *Session) endSavepoint(ctx context.Context, commit bool) error {
	n := len(s.txs)
	if n < 2 {
		return fmt.Errorf("no savepoint is open")
	}
	tx, ending, parent := s.txs[n-1], s.ids[n-1], s.ids[n-2]
	s.txs, s.ids = s.txs[:n-1], s.ids[:n-1]

	var result *multierror.Error
	event := host.SubXactEventAbort
	if commit {
		event = host.SubXactEventCommit
		if err := tx.Commit(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	} else if err := tx.Rollback(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.backend.Hooks.FireSubXact(ctx, event, ending, parent); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Commit commits the transaction, committing open savepoints first. The
// engine is finalized before the server commits, and the server commit
// releases the advisory locks.
func (s *Session) Commit(ctx context.Context) error {
	return s.finish(ctx, true)
}

// Rollback aborts the transaction.
func (s *Session) Rollback(ctx context.Context) error {
	return s.finish(ctx, false)
}

func (s *Session) finish(ctx context.Context, commit bool) error {
	if len(s.txs) == 0 {
		return fmt.Errorf("there is no transaction in progress")
	}
	var result *multierror.Error
	for len(s.txs) > 1 {
		if err := s.endSavepoint(ctx, commit); err != nil {
			result = multierror.Append(result, err)
		}
	}

	event := host.XactEventAbort
	if commit {
		event = host.XactEventCommit
	}
	if err := s.backend.Hooks.FireXact(ctx, event); err != nil {
		result = multierror.Append(result, err)
	}

	tx := s.txs[0]
	s.txs, s.ids = nil, nil
	if commit {
		if err := tx.Commit(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	} else if err := tx.Rollback(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// run executes fn in the open transaction, or in an implicit one.
func (s *Session) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if len(s.txs) > 0 {
		return fn(ctx)
	}
	if err := s.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if abortErr := s.finish(ctx, false); abortErr != nil {
			return multierror.Append(err, abortErr)
		}
		return err
	}
	return s.finish(ctx, true)
}

// CreateTable runs a CREATE TABLE statement through the utility hooks. The
// server creates the relation; the statement names its access method.
func (s *Session) CreateTable(ctx context.Context, stmt *host.CreateStmt) error {
	return s.Utility(ctx, stmt, createTableSQL(stmt))
}

// Utility runs a utility statement through the hook chain. sql is what the
// server runs when no handler takes the statement.
func (s *Session) Utility(ctx context.Context, stmt host.UtilityStmt, sql string) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.backend.Hooks.ProcessUtility(ctx, stmt, sql)
	})
}

// Insert stores rows into table. Tables using a registered access method go
// through it; other tables get a server-side INSERT.
func (s *Session) Insert(ctx context.Context, table string, rows ...[]interface{}) error {
	return s.run(ctx, func(ctx context.Context) error {
		rel, err := s.catalog.RelationByName(ctx, table)
		if err != nil {
			return err
		}
		am, ok := s.backend.AccessMethods.Lookup(rel.AccessMethod)
		if !ok {
			for _, row := range rows {
				if _, err := s.Exec(ctx, insertSQL(rel), row...); err != nil {
					return err
				}
			}
			return nil
		}

		slot := host.NewTupleSlot(rel.Desc)
		for _, row := range rows {
			if err := host.FillSlot(slot, row); err != nil {
				return err
			}
			if err := am.TupleInsert(ctx, rel, slot); err != nil {
				return err
			}
		}
		return nil
	})
}

// Select runs a read through the executor hooks. tables lists the relations
// the statement reads.
func (s *Session) Select(ctx context.Context, sql string, tables []string, desc *host.TupleDesc, dest host.DestReceiver) error {
	return s.run(ctx, func(ctx context.Context) error {
		rtable := make([]host.RangeTblEntry, 0, len(tables)+1)
		for _, name := range tables {
			rel, err := s.catalog.RelationByName(ctx, name)
			if err != nil {
				return err
			}
			rtable = append(rtable, host.RangeTblEntry{Kind: host.RTERelation, RelID: rel.ID})
		}
		if len(tables) > 1 {
			rtable = append(rtable, host.RangeTblEntry{Kind: host.RTEJoin})
		}
		return s.backend.Hooks.ExecutorRun(ctx, &host.QueryDesc{
			Operation:  host.CmdSelect,
			SourceText: sql,
			RangeTable: rtable,
			TupleDesc:  desc,
			Dest:       dest,
		})
	})
}

// standardExecutor lets the server run the statement and converts its rows.
func (s *Session) standardExecutor(ctx context.Context, qd *host.QueryDesc) error {
	rows, err := s.Query(ctx, qd.SourceText)
	if err != nil {
		return err
	}
	defer rows.Close()

	desc := qd.TupleDesc
	if desc == nil {
		fields := rows.FieldDescriptions()
		attrs := make([]host.Attribute, len(fields))
		for i, f := range fields {
			attrs[i] = host.Attribute{Name: f.Name, TypeOID: host.OID(f.DataTypeOID), TypeMod: f.TypeModifier}
		}
		desc = host.NewTupleDesc(attrs...)
	}
	if err := qd.Dest.Startup(ctx, qd.Operation, desc); err != nil {
		return err
	}

	slot := host.NewTupleSlot(desc)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		for i, v := range values {
			if n, ok := v.(pgtype.Numeric); ok {
				f, err := n.Float64Value()
				if err != nil {
					return err
				}
				values[i] = f.Float64
			}
		}
		if err := host.FillSlot(slot, values); err != nil {
			return err
		}
		if err := qd.Dest.ReceiveSlot(ctx, slot); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return qd.Dest.Shutdown(ctx)
}

func (s *Session) standardUtility(ctx context.Context, stmt host.UtilityStmt, sql string) error {
	_, err := s.Exec(ctx, sql)
	return err
}

func createTableSQL(stmt *host.CreateStmt) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if stmt.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	name := pgx.Identifier{stmt.Name}
	if stmt.Schema != "" {
		name = pgx.Identifier{stmt.Schema, stmt.Name}
	}
	b.WriteString(name.Sanitize())
	b.WriteString(" (")
	for i, col := range stmt.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col.Name}.Sanitize())
		b.WriteString(" ")
		b.WriteString(col.TypeName)
	}
	b.WriteString(")")
	if stmt.AccessMethod != "" {
		b.WriteString(" USING ")
		b.WriteString(pgx.Identifier{stmt.AccessMethod}.Sanitize())
	}
	return b.String()
}

func insertSQL(rel *host.Relation) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier{rel.Name}.Sanitize())
	b.WriteString(" VALUES (")
	for i := 0; i < rel.Desc.NumAttrs(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + strconv.Itoa(i+1))
	}
	b.WriteString(")")
	return b.String()
}
