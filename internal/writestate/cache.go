package writestate

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/logger"
	"github.com/ajitpratap0/quack/pkg/metrics"
	"github.com/ajitpratap0/quack/pkg/observability"
)

// Opener provides the engine handles a WriteState owns.
type Opener interface {
	OpenDatabase(ctx context.Context, locker host.AdvisoryLocker, dbID host.OID, preserveInsertOrder bool) (*engine.DB, error)
	OpenConnection(ctx context.Context, db *engine.DB) (engine.Conn, error)
	CreateAppender(ctx context.Context, conn engine.Conn, table string) (engine.Appender, error)
}

// Cache maps relations to their stacks of per-subtransaction write states.
// A Cache belongs to one host session and spans one top-level transaction at
// a time; it is not safe for concurrent use.
type Cache struct {
	opener              Opener
	locker              host.AdvisoryLocker
	preserveInsertOrder bool
	logger              *zap.Logger

	// stacks holds open states per relation, innermost subtransaction last.
	stacks map[host.OID][]*WriteState
	// merged holds states of committed subtransactions, keyed by the
	// subtransaction they were committed into.
	merged map[host.SubTransactionID][]*WriteState
}

// New creates an empty cache. Write connections use preserveInsertOrder for
// the engine's insertion order setting.
func New(opener Opener, locker host.AdvisoryLocker, preserveInsertOrder bool, log *zap.Logger) *Cache {
	if log == nil {
		log = logger.Get()
	}
	return &Cache{
		opener:              opener,
		locker:              locker,
		preserveInsertOrder: preserveInsertOrder,
		logger:              log.With(zap.String("component", "write_state_cache")),
		stacks:              make(map[host.OID][]*WriteState),
		merged:              make(map[host.SubTransactionID][]*WriteState),
	}
}

// GetOrCreate returns the open state of rel for subXid, opening one when the
// relation has none at that level yet. On failure nothing is cached and the
// caller must abort the statement.
func (c *Cache) GetOrCreate(ctx context.Context, rel *host.Relation, dbID host.OID, subXid host.SubTransactionID) (*WriteState, error) {
	stack := c.stacks[rel.ID]
	if n := len(stack); n > 0 && stack[n-1].SubXid == subXid {
		return stack[n-1], nil
	}

	ws, err := c.open(ctx, rel, dbID, subXid)
	if err != nil {
		return nil, err
	}
	c.stacks[rel.ID] = append(stack, ws)
	return ws, nil
}

func (c *Cache) open(ctx context.Context, rel *host.Relation, dbID host.OID, subXid host.SubTransactionID) (ws *WriteState, err error) {
	ctx, span := observability.StartSpan(ctx, "write_state.open")
	defer func() {
		span.RecordError(err)
		span.End()
	}()
	span.SetAttribute("relation", uint32(rel.ID))
	span.SetAttribute("sub_xid", uint32(subXid))

	db, err := c.opener.OpenDatabase(ctx, c.locker, dbID, c.preserveInsertOrder)
	if err != nil {
		return nil, err
	}
	conn, err := c.opener.OpenConnection(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.Exec(ctx, "BEGIN TRANSACTION"); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeEngineConnect, "failed to begin engine transaction").
			WithDetail("database_id", uint32(dbID)).
			WithDetail("engine_error", err.Error())
	}
	app, err := c.opener.CreateAppender(ctx, conn, rel.Name)
	if err != nil {
		_ = conn.Exec(ctx, "ROLLBACK")
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	metrics.WriteStatesOpened.Inc()
	metrics.WriteStatesOpen.Inc()
	c.logger.Debug("opened write state",
		zap.Uint32("relation", uint32(rel.ID)),
		zap.String("table", rel.Name),
		zap.Uint32("sub_xid", uint32(subXid)))

	return &WriteState{
		RelID:    rel.ID,
		SubXid:   subXid,
		Table:    rel.Name,
		db:       db,
		conn:     conn,
		appender: app,
	}, nil
}

// OnSubtransactionEnd pops every state opened in ending. On commit each is
// flushed and handed to parent; on abort each is rolled back. States that
// earlier children committed into ending follow the same outcome. A later
// GetOrCreate under parent opens a fresh state.
//
// Errors are finalize failures: the host has already decided the outcome,
// so they can only be reported.
func (c *Cache) OnSubtransactionEnd(ctx context.Context, ending, parent host.SubTransactionID, commit bool) error {
	var result *multierror.Error

	for _, relID := range c.relations() {
		stack := c.stacks[relID]
		n := len(stack)
		if n == 0 || stack[n-1].SubXid != ending {
			continue
		}
		ws := stack[n-1]
		if n == 1 {
			delete(c.stacks, relID)
		} else {
			c.stacks[relID] = stack[:n-1]
		}

		if !commit {
			result = multierror.Append(result, c.finish(ctx, ws, false))
			continue
		}
		if err := ws.appender.Flush(); err != nil {
			result = multierror.Append(result, err, c.finish(ctx, ws, false))
			continue
		}
		c.merged[parent] = append(c.merged[parent], ws)
		metrics.WriteStatesClosed.WithLabelValues(metrics.OutcomeMerge).Inc()
	}

	children := c.merged[ending]
	delete(c.merged, ending)
	if commit {
		if len(children) > 0 {
			c.merged[parent] = append(c.merged[parent], children...)
		}
	} else {
		for _, ws := range children {
			result = multierror.Append(result, c.finish(ctx, ws, false))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		c.logger.Error("failed to finalize subtransaction write states",
			zap.Uint32("sub_xid", uint32(ending)),
			zap.Uint32("parent_sub_xid", uint32(parent)),
			zap.Bool("commit", commit),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeFinalize, "failed to finalize subtransaction write states").
			WithDetail("sub_xid", uint32(ending))
	}

	c.logger.Debug("subtransaction ended",
		zap.Uint32("sub_xid", uint32(ending)),
		zap.Uint32("parent_sub_xid", uint32(parent)),
		zap.Bool("commit", commit))
	return nil
}

// EndTransaction finalizes every remaining state with the top-level outcome
// and empties the cache. Commit failures are reported loudly: the host
// commit they belong to cannot be undone.
func (c *Cache) EndTransaction(ctx context.Context, commit bool) error {
	var states []*WriteState
	for _, relID := range c.relations() {
		states = append(states, c.stacks[relID]...)
	}
	for _, subXid := range c.mergedLevels() {
		states = append(states, c.merged[subXid]...)
	}
	c.stacks = make(map[host.OID][]*WriteState)
	c.merged = make(map[host.SubTransactionID][]*WriteState)

	var (
		result *multierror.Error
		rows   uint64
	)
	for _, ws := range states {
		rows += ws.rows
		result = multierror.Append(result, c.finish(ctx, ws, commit))
	}

	if err := result.ErrorOrNil(); err != nil {
		c.logger.Error("failed to finalize write states at transaction end",
			zap.Bool("commit", commit),
			zap.Int("states", len(states)),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeFinalize, "failed to finalize write states").
			WithDetail("commit", commit)
	}

	if len(states) > 0 {
		c.logger.Debug("transaction ended",
			zap.Bool("commit", commit),
			zap.Int("states", len(states)),
			zap.Uint64("rows", rows))
	}
	return nil
}

// finish commits or aborts ws and records the outcome.
func (c *Cache) finish(ctx context.Context, ws *WriteState, commit bool) error {
	outcome := metrics.OutcomeAbort
	var err error
	if commit {
		outcome = metrics.OutcomeCommit
		err = ws.commit(ctx)
	} else {
		err = ws.abort(ctx)
	}
	metrics.WriteStatesOpen.Dec()
	metrics.WriteStatesClosed.WithLabelValues(outcome).Inc()
	return err
}

// Stack returns the open states of relID, innermost first.
func (c *Cache) Stack(relID host.OID) []*WriteState {
	stack := c.stacks[relID]
	out := make([]*WriteState, len(stack))
	for i, ws := range stack {
		out[len(stack)-1-i] = ws
	}
	return out
}

// Len returns the number of live states, committed-into-parent ones included.
func (c *Cache) Len() int {
	n := 0
	for _, stack := range c.stacks {
		n += len(stack)
	}
	for _, states := range c.merged {
		n += len(states)
	}
	return n
}

// relations returns the cached relation ids in ascending order so teardown
// is deterministic.
func (c *Cache) relations() []host.OID {
	ids := make([]host.OID, 0, len(c.stacks))
	for id := range c.stacks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Cache) mergedLevels() []host.SubTransactionID {
	ids := make([]host.SubTransactionID, 0, len(c.merged))
	for id := range c.merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
