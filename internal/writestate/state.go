// Package writestate caches engine write sessions per relation and
// subtransaction and finalizes them in step with the host's transaction
// lifecycle.
//
// Every WriteState owns a database handle, a connection running an explicit
// engine transaction, and an appender bound to the relation's table. A state
// belongs to exactly one subtransaction. When that subtransaction aborts its
// engine transaction is rolled back. When it commits, its appender is
// flushed and the state is handed to the parent: its engine transaction stays
// open until the parent ends, so a later abort of the parent still discards
// it. The top-level transaction end commits or rolls back everything.
package writestate

import (
	"context"
	stderrors "errors"

	"github.com/hashicorp/go-multierror"

	"github.com/ajitpratap0/quack/internal/bridge"
	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/metrics"
)

// WriteState is one open write session into the engine for one relation
// within one subtransaction.
type WriteState struct {
	RelID  host.OID
	SubXid host.SubTransactionID
	Table  string

	db       *engine.DB
	conn     engine.Conn
	appender engine.Appender
	rows     uint64
}

// Append encodes slot and appends it as one row. A failing row is discarded
// entirely.
func (w *WriteState) Append(slot *host.TupleSlot) error {
	if err := bridge.EncodeRow(w.appender, slot); err != nil {
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return err
		}
		return errors.Wrap(err, errors.ErrorTypeQueryExecution, "failed to append row").
			WithDetail("table", w.Table).
			WithDetail("engine_error", err.Error())
	}
	w.rows++
	metrics.RowsAppended.Inc()
	return nil
}

// RowCount returns the number of rows appended through this state.
func (w *WriteState) RowCount() uint64 { return w.rows }

// Appender exposes the underlying appender.
func (w *WriteState) Appender() engine.Appender { return w.appender }

// commit flushes the appender and commits the engine transaction. When the
// flush fails the transaction is rolled back instead, so the engine never
// keeps part of a level.
func (w *WriteState) commit(ctx context.Context) error {
	var result *multierror.Error

	if err := w.appender.Close(); err != nil {
		result = multierror.Append(result, err)
		if rerr := w.conn.Exec(ctx, "ROLLBACK"); rerr != nil {
			result = multierror.Append(result, rerr)
		}
	} else if err := w.conn.Exec(ctx, "COMMIT"); err != nil {
		result = multierror.Append(result, err)
	}

	result = multierror.Append(result, w.release()...)
	return result.ErrorOrNil()
}

// abort rolls back the engine transaction. Buffered rows are flushed into the
// transaction first so the appender releases cleanly; the rollback discards
// them with everything else.
func (w *WriteState) abort(ctx context.Context) error {
	_ = w.appender.Close()

	var result *multierror.Error
	if err := w.conn.Exec(ctx, "ROLLBACK"); err != nil {
		result = multierror.Append(result, err)
	}
	result = multierror.Append(result, w.release()...)
	return result.ErrorOrNil()
}

func (w *WriteState) release() []error {
	var errs []error
	if err := w.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errs
}
