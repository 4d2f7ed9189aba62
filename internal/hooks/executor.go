package hooks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/observability"
)

// ExecutorInterceptor takes over SELECT statements whose every relation uses
// the engine's access method and runs them in the engine instead.
type ExecutorInterceptor struct {
	catalog      host.Catalog
	accessMethod string
	runner       *QueryRunner
	logger       *zap.Logger
}

// NewExecutorInterceptor creates an interceptor for relations using
// accessMethod.
func NewExecutorInterceptor(catalog host.Catalog, accessMethod string, runner *QueryRunner, log *zap.Logger) *ExecutorInterceptor {
	if log == nil {
		log = logger.Get()
	}
	return &ExecutorInterceptor{
		catalog:      catalog,
		accessMethod: accessMethod,
		runner:       runner,
		logger:       log.With(zap.String("component", "executor_interceptor")),
	}
}

// ExecutorRun implements host.ExecutorRunHandler.
func (e *ExecutorInterceptor) ExecutorRun(ctx context.Context, qd *host.QueryDesc) (bool, error) {
	if qd.Operation != host.CmdSelect {
		return false, nil
	}
	owned, err := e.engineOwned(ctx, qd.RangeTable)
	if err != nil || !owned {
		return false, err
	}

	ctx, span := observability.StartSpan(ctx, "executor.engine_query")
	defer span.End()

	e.logger.Debug("routing query to engine", zap.String("query", qd.SourceText))
	rows, err := e.runner.Run(ctx, qd.Operation, qd.SourceText, qd.TupleDesc, qd.Dest)
	span.SetAttribute("rows", rows)
	span.RecordError(err)
	return true, err
}

// engineOwned reports whether the range table references at least one
// relation and every relation in it uses the engine's access method. Joins
// and subqueries are fine; any other entry kind keeps the query on the host.
func (e *ExecutorInterceptor) engineOwned(ctx context.Context, rtable []host.RangeTblEntry) (bool, error) {
	relations := 0
	for _, rte := range rtable {
		switch rte.Kind {
		case host.RTERelation:
			rel, err := e.catalog.Relation(ctx, rte.RelID)
			if err != nil {
				return false, err
			}
			if rel.AccessMethod != e.accessMethod {
				return false, nil
			}
			relations++
		case host.RTEJoin, host.RTESubquery:
		default:
			return false, nil
		}
	}
	return relations > 0, nil
}
