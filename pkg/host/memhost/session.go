package memhost

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/quack/pkg/host"
)

// Session is one backend connected to a Host. It is used by one goroutine
// at a time.
type Session struct {
	host    *Host
	backend *host.Backend
	locks   *host.LockSession

	inTxn bool
	// levels holds the open subtransactions, outermost first. levels[0] is
	// the top-level transaction.
	levels  []level
	nextSub host.SubTransactionID
}

type level struct {
	id        host.SubTransactionID
	savepoint string
}

// Connect opens a new backend session.
func (h *Host) Connect(name string) *Session {
	s := &Session{
		host:  h,
		locks: h.locks.Session(name),
	}
	s.backend = &host.Backend{
		ID:            name,
		DatabaseID:    h.databaseID,
		Catalog:       h,
		Types:         h,
		Locker:        s.locks,
		Xact:          s,
		Hooks:         host.NewHooks(s.standardExecutor, s.standardUtility),
		AccessMethods: host.NewAccessMethodRegistry(),
	}
	return s
}

// Backend returns the host services of this session.
func (s *Session) Backend() *host.Backend { return s.backend }

// Locks returns the session's advisory lock owner.
func (s *Session) Locks() *host.LockSession { return s.locks }

// InTransaction reports whether an explicit transaction block is open.
func (s *Session) InTransaction() bool { return s.inTxn }

// CurrentSubTransactionID implements host.TransactionState.
func (s *Session) CurrentSubTransactionID() host.SubTransactionID {
	if len(s.levels) == 0 {
		return host.InvalidSubTransactionID
	}
	return s.levels[len(s.levels)-1].id
}

// Begin opens a transaction block.
func (s *Session) Begin(ctx context.Context) error {
	if s.inTxn {
		return fmt.Errorf("there is already a transaction in progress")
	}
	s.start()
	s.inTxn = true
	return nil
}

func (s *Session) start() {
	s.levels = []level{{id: host.TopSubTransactionID}}
	s.nextSub = host.TopSubTransactionID + 1
}

// Savepoint opens a subtransaction.
func (s *Session) Savepoint(ctx context.Context, name string) error {
	if !s.inTxn {
		return fmt.Errorf("SAVEPOINT can only be used in transaction blocks")
	}
	parent := s.CurrentSubTransactionID()
	id := s.nextSub
	s.nextSub++
	s.levels = append(s.levels, level{id: id, savepoint: name})
	return s.backend.Hooks.FireSubXact(ctx, host.SubXactEventStart, id, parent)
}

// Release commits the named savepoint and every subtransaction opened
// after it into their parents.
func (s *Session) Release(ctx context.Context, name string) error {
	depth, err := s.find(name)
	if err != nil {
		return err
	}
	return s.endLevels(ctx, depth, host.SubXactEventCommit)
}

// RollbackTo aborts every subtransaction back to and including the named
// savepoint, then reopens the savepoint.
func (s *Session) RollbackTo(ctx context.Context, name string) error {
	depth, err := s.find(name)
	if err != nil {
		return err
	}
	if err := s.endLevels(ctx, depth, host.SubXactEventAbort); err != nil {
		return err
	}
	return s.Savepoint(ctx, name)
}

func (s *Session) find(name string) (int, error) {
	if !s.inTxn {
		return 0, fmt.Errorf("savepoints can only be used in transaction blocks")
	}
	for i := len(s.levels) - 1; i > 0; i-- {
		if s.levels[i].savepoint == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("savepoint %q does not exist", name)
}

// endLevels closes subtransactions innermost first until only depth levels
// remain. Every level is closed even when a callback fails.
func (s *Session) endLevels(ctx context.Context, depth int, event host.SubXactEvent) error {
	var result *multierror.Error
	for len(s.levels) > depth {
		n := len(s.levels)
		ending, parent := s.levels[n-1].id, s.levels[n-2].id
		s.levels = s.levels[:n-1]
		if err := s.backend.Hooks.FireSubXact(ctx, event, ending, parent); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Commit commits the transaction block. Open subtransactions are committed
// first. Advisory locks are released last, whatever the callbacks report.
func (s *Session) Commit(ctx context.Context) error {
	if !s.inTxn {
		return fmt.Errorf("there is no transaction in progress")
	}
	return s.finish(ctx, true)
}

// Rollback aborts the transaction block.
func (s *Session) Rollback(ctx context.Context) error {
	if !s.inTxn {
		return fmt.Errorf("there is no transaction in progress")
	}
	return s.finish(ctx, false)
}

func (s *Session) finish(ctx context.Context, commit bool) error {
	subEvent, event := host.SubXactEventAbort, host.XactEventAbort
	if commit {
		subEvent, event = host.SubXactEventCommit, host.XactEventCommit
	}

	var result *multierror.Error
	if err := s.endLevels(ctx, 1, subEvent); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.backend.Hooks.FireXact(ctx, event); err != nil {
		result = multierror.Append(result, err)
	}
	s.locks.ReleaseAll()
	s.levels = nil
	s.inTxn = false
	return result.ErrorOrNil()
}

// run executes fn inside the open transaction block, or inside an implicit
// transaction that commits on success and aborts on failure.
func (s *Session) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTxn {
		return fn(ctx)
	}
	s.start()
	s.inTxn = true
	if err := fn(ctx); err != nil {
		if abortErr := s.finish(ctx, false); abortErr != nil {
			return multierror.Append(err, abortErr)
		}
		return err
	}
	return s.finish(ctx, true)
}
