package host

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// ExecutorRunHandler may take over execution of a planned statement. It
// returns handled=false to fall through to the next handler.
type ExecutorRunHandler interface {
	ExecutorRun(ctx context.Context, qd *QueryDesc) (handled bool, err error)
}

// ExecutorRunFunc adapts a function to ExecutorRunHandler.
type ExecutorRunFunc func(ctx context.Context, qd *QueryDesc) (bool, error)

// ExecutorRun calls f.
func (f ExecutorRunFunc) ExecutorRun(ctx context.Context, qd *QueryDesc) (bool, error) {
	return f(ctx, qd)
}

// ProcessUtilityHandler may take over a utility statement. It returns
// handled=false to fall through to the next handler.
type ProcessUtilityHandler interface {
	ProcessUtility(ctx context.Context, stmt UtilityStmt, queryString string) (handled bool, err error)
}

// ProcessUtilityFunc adapts a function to ProcessUtilityHandler.
type ProcessUtilityFunc func(ctx context.Context, stmt UtilityStmt, queryString string) (bool, error)

// ProcessUtility calls f.
func (f ProcessUtilityFunc) ProcessUtility(ctx context.Context, stmt UtilityStmt, queryString string) (bool, error) {
	return f(ctx, stmt, queryString)
}

// StandardExecutor runs a statement the host's own way.
type StandardExecutor func(ctx context.Context, qd *QueryDesc) error

// StandardUtility processes a utility statement the host's own way.
type StandardUtility func(ctx context.Context, stmt UtilityStmt, queryString string) error

// SubXactEvent is a subtransaction boundary.
type SubXactEvent int

// Subtransaction events.
const (
	SubXactEventStart SubXactEvent = iota
	SubXactEventCommit
	SubXactEventAbort
)

// XactEvent is a top-level transaction boundary.
type XactEvent int

// Transaction events.
const (
	XactEventCommit XactEvent = iota
	XactEventAbort
)

// SubXactCallback is notified of subtransaction boundaries.
type SubXactCallback func(ctx context.Context, event SubXactEvent, mySubID, parentSubID SubTransactionID) error

// XactCallback is notified when the top-level transaction ends.
type XactCallback func(ctx context.Context, event XactEvent) error

// Hooks holds the host's extension points. Handlers run in registration
// order; the first one reporting handled stops the chain, otherwise the
// standard implementation runs.
type Hooks struct {
	mu       sync.RWMutex
	executor []ExecutorRunHandler
	utility  []ProcessUtilityHandler
	subXact  []SubXactCallback
	xact     []XactCallback

	standardExecutor StandardExecutor
	standardUtility  StandardUtility
}

// NewHooks creates hook chains that fall back to the given standard
// implementations.
func NewHooks(executor StandardExecutor, utility StandardUtility) *Hooks {
	return &Hooks{
		standardExecutor: executor,
		standardUtility:  utility,
	}
}

// AddExecutorRun appends an executor handler.
func (h *Hooks) AddExecutorRun(handler ExecutorRunHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executor = append(h.executor, handler)
}

// AddProcessUtility appends a utility handler.
func (h *Hooks) AddProcessUtility(handler ProcessUtilityHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.utility = append(h.utility, handler)
}

// RegisterSubXactCallback appends a subtransaction callback.
func (h *Hooks) RegisterSubXactCallback(cb SubXactCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subXact = append(h.subXact, cb)
}

// RegisterXactCallback appends a transaction callback.
func (h *Hooks) RegisterXactCallback(cb XactCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.xact = append(h.xact, cb)
}

// ExecutorRun dispatches qd through the executor chain.
func (h *Hooks) ExecutorRun(ctx context.Context, qd *QueryDesc) error {
	h.mu.RLock()
	handlers := append([]ExecutorRunHandler(nil), h.executor...)
	standard := h.standardExecutor
	h.mu.RUnlock()

	for _, handler := range handlers {
		handled, err := handler.ExecutorRun(ctx, qd)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	if standard == nil {
		return nil
	}
	return standard(ctx, qd)
}

// ProcessUtility dispatches stmt through the utility chain.
func (h *Hooks) ProcessUtility(ctx context.Context, stmt UtilityStmt, queryString string) error {
	h.mu.RLock()
	handlers := append([]ProcessUtilityHandler(nil), h.utility...)
	standard := h.standardUtility
	h.mu.RUnlock()

	for _, handler := range handlers {
		handled, err := handler.ProcessUtility(ctx, stmt, queryString)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	if standard == nil {
		return nil
	}
	return standard(ctx, stmt, queryString)
}

// FireSubXact notifies every subtransaction callback. All callbacks run even
// when one fails; failures are aggregated.
func (h *Hooks) FireSubXact(ctx context.Context, event SubXactEvent, mySubID, parentSubID SubTransactionID) error {
	h.mu.RLock()
	callbacks := append([]SubXactCallback(nil), h.subXact...)
	h.mu.RUnlock()

	var result *multierror.Error
	for _, cb := range callbacks {
		if err := cb(ctx, event, mySubID, parentSubID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// FireXact notifies every transaction callback, aggregating failures.
func (h *Hooks) FireXact(ctx context.Context, event XactEvent) error {
	h.mu.RLock()
	callbacks := append([]XactCallback(nil), h.xact...)
	h.mu.RUnlock()

	var result *multierror.Error
	for _, cb := range callbacks {
		if err := cb(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
