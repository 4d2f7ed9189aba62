package quack

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/hooks"
	"github.com/ajitpratap0/quack/internal/writestate"
	"github.com/ajitpratap0/quack/pkg/host"
)

// Session is quack's per-backend state. Like the backend it serves, it is
// used by one goroutine at a time.
type Session struct {
	ext     *Extension
	backend *host.Backend
	cache   *writestate.Cache
	runner  *hooks.QueryRunner
	logger  *zap.Logger
}

// Name implements host.TableAccessMethod.
func (s *Session) Name() string { return s.ext.config.AccessMethod }

// TupleInsert implements host.TableAccessMethod: the row goes to the write
// state of rel for the backend's current subtransaction.
func (s *Session) TupleInsert(ctx context.Context, rel *host.Relation, slot *host.TupleSlot) error {
	return s.Insert(ctx, rel, slot)
}

// Insert appends one row of rel under the current subtransaction.
func (s *Session) Insert(ctx context.Context, rel *host.Relation, slot *host.TupleSlot) error {
	ws, err := s.InitWriteState(ctx, rel, s.backend.DatabaseID, s.backend.Xact.CurrentSubTransactionID())
	if err != nil {
		return err
	}
	return ws.Append(slot)
}

// InitWriteState returns the write state of rel for subXid, opening the
// engine database, connection and appender on first use.
func (s *Session) InitWriteState(ctx context.Context, rel *host.Relation, dbID host.OID, subXid host.SubTransactionID) (*writestate.WriteState, error) {
	return s.cache.GetOrCreate(ctx, rel, dbID, subXid)
}

// FlushWriteState ends subXid with the given outcome. A parent of
// host.InvalidSubTransactionID means subXid is the top-level transaction.
func (s *Session) FlushWriteState(ctx context.Context, subXid, parent host.SubTransactionID, commit bool) error {
	if parent == host.InvalidSubTransactionID {
		return s.EndTransaction(ctx, commit)
	}
	return s.cache.OnSubtransactionEnd(ctx, subXid, parent, commit)
}

// EndTransaction commits or aborts every write state of the top-level
// transaction.
func (s *Session) EndTransaction(ctx context.Context, commit bool) error {
	return s.cache.EndTransaction(ctx, commit)
}

// ExecuteQuery runs sql directly in the engine and streams the result into
// dest, with column types taken from the engine.
func (s *Session) ExecuteQuery(ctx context.Context, sql string, dest host.DestReceiver) (uint64, error) {
	return s.runner.Run(ctx, host.CmdSelect, sql, nil, dest)
}

// OpenWriteStates returns the number of write states the session holds.
func (s *Session) OpenWriteStates() int { return s.cache.Len() }

func (s *Session) onSubXact(ctx context.Context, event host.SubXactEvent, mySubID, parentSubID host.SubTransactionID) error {
	switch event {
	case host.SubXactEventCommit:
		return s.FlushWriteState(ctx, mySubID, parentSubID, true)
	case host.SubXactEventAbort:
		return s.FlushWriteState(ctx, mySubID, parentSubID, false)
	}
	return nil
}

func (s *Session) onXact(ctx context.Context, event host.XactEvent) error {
	return s.EndTransaction(ctx, event == host.XactEventCommit)
}
