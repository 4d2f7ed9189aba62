// Package hooks intercepts host statements that concern engine-owned tables:
// reads whose tables all live in the engine are executed there, and CREATE
// TABLE statements using the engine's access method are mirrored into it.
package hooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/bridge"
	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/metrics"
)

// Connector runs fn with a transient engine connection for a host database.
// *engine.Opener implements it.
type Connector interface {
	WithConnection(ctx context.Context, locker host.AdvisoryLocker, dbID host.OID, preserveInsertOrder bool, fn func(ctx context.Context, conn engine.Conn) error) error
}

// StreamQuery runs sql on conn and delivers every row to dest. desc is the
// host's result descriptor; when nil it is derived from the engine's result
// columns. Engine errors are returned before dest sees anything. Once rows
// flow, the first failure stops delivery: no row after it is sent.
func StreamQuery(ctx context.Context, conn engine.Conn, op host.CmdType, sql string, desc *host.TupleDesc, dest host.DestReceiver) (uint64, error) {
	rows, err := conn.Query(ctx, sql)
	if err != nil {
		metrics.EngineErrors.WithLabelValues(string(errors.ErrorTypeQueryExecution)).Inc()
		return 0, errors.Wrap(err, errors.ErrorTypeQueryExecution, "engine query failed").
			WithDetail("query", sql).
			WithDetail("engine_error", err.Error())
	}
	defer rows.Close()

	if desc == nil {
		desc, err = DescribeColumns(rows.Columns())
		if err != nil {
			return 0, err
		}
	}
	out := bridge.OutputDesc(desc)
	if out.NumAttrs() != len(rows.Columns()) {
		return 0, errors.Newf(errors.ErrorTypeQueryExecution,
			"engine returned %d columns, host expects %d", len(rows.Columns()), out.NumAttrs())
	}

	if err := dest.Startup(ctx, op, out); err != nil {
		return 0, err
	}

	var (
		count   uint64
		loopErr error
	)
	slot := host.NewTupleSlot(out)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}
		slot.Clear()
		if err := bridge.DecodeRow(rows, slot); err != nil {
			loopErr = err
			break
		}
		if err := dest.ReceiveSlot(ctx, slot); err != nil {
			loopErr = err
			break
		}
		count++
	}
	if loopErr == nil {
		if err := rows.Err(); err != nil {
			metrics.EngineErrors.WithLabelValues(string(errors.ErrorTypeQueryExecution)).Inc()
			loopErr = errors.Wrap(err, errors.ErrorTypeQueryExecution, "engine query failed while streaming").
				WithDetail("query", sql).
				WithDetail("engine_error", err.Error())
		}
	}

	metrics.RowsReturned.Add(float64(count))
	if err := dest.Shutdown(ctx); err != nil && loopErr == nil {
		loopErr = err
	}
	return count, loopErr
}

// DescribeColumns builds a host descriptor from engine result columns.
func DescribeColumns(cols []engine.Column) (*host.TupleDesc, error) {
	attrs := make([]host.Attribute, len(cols))
	for i, col := range cols {
		oid, err := bridge.HostType(col.TypeName)
		if err != nil {
			return nil, err
		}
		attrs[i] = host.Attribute{Name: col.Name, TypeOID: oid, TypeMod: -1}
	}
	return host.NewTupleDesc(attrs...), nil
}

// QueryRunner executes read statements on transient engine connections.
type QueryRunner struct {
	connector Connector
	locker    host.AdvisoryLocker
	dbID      host.OID
	logger    *zap.Logger
}

// NewQueryRunner creates a runner for one host database.
func NewQueryRunner(connector Connector, locker host.AdvisoryLocker, dbID host.OID, log *zap.Logger) *QueryRunner {
	if log == nil {
		log = logger.Get()
	}
	return &QueryRunner{
		connector: connector,
		locker:    locker,
		dbID:      dbID,
		logger:    log.With(zap.String("component", "query_runner")),
	}
}

// Run executes sql against the engine and streams the results into dest.
// Reads always preserve insertion order.
func (r *QueryRunner) Run(ctx context.Context, op host.CmdType, sql string, desc *host.TupleDesc, dest host.DestReceiver) (uint64, error) {
	timer := metrics.NewTimer("query")
	var count uint64
	err := r.connector.WithConnection(ctx, r.locker, r.dbID, true, func(ctx context.Context, conn engine.Conn) error {
		var err error
		count, err = StreamQuery(ctx, conn, op, sql, desc, dest)
		return err
	})
	elapsed := timer.ObserveQuery(op.String())

	if err != nil {
		r.logger.Warn("engine query failed",
			zap.String("query", sql),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return count, err
	}
	r.logger.Debug("engine query finished",
		zap.String("query", sql),
		zap.Uint64("rows", count),
		zap.Duration("elapsed", elapsed))
	return count, nil
}
