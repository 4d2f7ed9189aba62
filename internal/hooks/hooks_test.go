package hooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/internal/engine/enginetest"
	"github.com/ajitpratap0/quack/pkg/errors"
	"github.com/ajitpratap0/quack/pkg/host"
	"github.com/ajitpratap0/quack/pkg/testutil"
)

const testDB host.OID = 16384

type mapCatalog map[host.OID]*host.Relation

func (c mapCatalog) Relation(ctx context.Context, id host.OID) (*host.Relation, error) {
	rel, ok := c[id]
	if !ok {
		return nil, fmt.Errorf("relation %d does not exist", id)
	}
	return rel, nil
}

type mapTypes map[string]host.OID

func (m mapTypes) ResolveType(ctx context.Context, name string) (host.OID, error) {
	oid, ok := m[name]
	if !ok {
		return host.InvalidOID, fmt.Errorf("type %q does not exist", name)
	}
	return oid, nil
}

// collector is a DestReceiver that records what it was given.
type collector struct {
	started  bool
	shutdown bool
	desc     *host.TupleDesc
	rows     [][]interface{}
	failAt   int
}

func (c *collector) Startup(ctx context.Context, op host.CmdType, desc *host.TupleDesc) error {
	c.started = true
	c.desc = desc
	return nil
}

func (c *collector) ReceiveSlot(ctx context.Context, slot *host.TupleSlot) error {
	if c.failAt > 0 && len(c.rows)+1 == c.failAt {
		return stderrors.New("client went away")
	}
	row := make([]interface{}, len(slot.Values))
	for i, attr := range slot.Desc.Attrs {
		if slot.IsNull[i] {
			continue
		}
		switch attr.TypeOID {
		case host.Int4OID:
			row[i] = slot.Values[i].Int32()
		case host.TextOID:
			data, err := slot.Values[i].Varlena().Data()
			if err != nil {
				return err
			}
			row[i] = string(data)
		default:
			row[i] = slot.Values[i]
		}
	}
	c.rows = append(c.rows, row)
	return nil
}

func (c *collector) Shutdown(ctx context.Context) error {
	c.shutdown = true
	return nil
}

type fixture struct {
	driver  *enginetest.Driver
	opener  *engine.Opener
	locks   *host.LockSession
	catalog mapCatalog
	types   mapTypes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ef := testutil.NewEngineFixture(t, "/data")
	return &fixture{
		driver: ef.Driver,
		opener: ef.Opener,
		locks:  ef.Locks,
		catalog: mapCatalog{
			1: {ID: 1, Name: "t1", AccessMethod: "quack"},
			2: {ID: 2, Name: "t2", AccessMethod: "quack"},
			3: {ID: 3, Name: "heap1", AccessMethod: "heap"},
		},
		types: mapTypes{"integer": host.Int4OID, "text": host.TextOID, "json": host.OID(114)},
	}
}

func (f *fixture) utility(t *testing.T) *UtilityInterceptor {
	return NewUtilityInterceptor("quack", f.types, f.opener, f.locks, testDB, zaptest.NewLogger(t))
}

func (f *fixture) executor(t *testing.T) *ExecutorInterceptor {
	runner := NewQueryRunner(f.opener, f.locks, testDB, zaptest.NewLogger(t))
	return NewExecutorInterceptor(f.catalog, "quack", runner, zaptest.NewLogger(t))
}

// seed creates t1(a integer, b text) and commits rows into it.
func (f *fixture) seed(t *testing.T, rows ...[2]interface{}) {
	t.Helper()
	ctx := context.Background()
	handled, err := f.utility(t).ProcessUtility(ctx, &host.CreateStmt{
		Name:         "t1",
		AccessMethod: "quack",
		Columns:      []host.ColumnDef{{Name: "a", TypeName: "integer"}, {Name: "b", TypeName: "text"}},
	}, "CREATE TABLE t1 (a integer, b text) USING quack")
	require.NoError(t, err)
	require.False(t, handled)

	err = f.opener.WithConnection(ctx, f.locks, testDB, false, func(ctx context.Context, conn engine.Conn) error {
		app, err := conn.NewAppender(ctx, "t1")
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r[0] == nil {
				require.NoError(t, app.AppendNull())
			} else {
				require.NoError(t, app.AppendInt32(r[0].(int32)))
			}
			require.NoError(t, app.AppendVarchar([]byte(r[1].(string))))
			require.NoError(t, app.EndRow())
		}
		return app.Close()
	})
	require.NoError(t, err)
}

func TestBuildCreateTable(t *testing.T) {
	cols := []EngineColumn{{Name: "a", Type: "INTEGER"}, {Name: "b", Type: "TEXT"}}

	assert.Equal(t, `CREATE TABLE "t1" ("a" INTEGER, "b" TEXT)`, BuildCreateTable("t1", cols, false))
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "t1" ("a" INTEGER, "b" TEXT)`, BuildCreateTable("t1", cols, true))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestUtility_CreatesEngineTableAndFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	cols := f.driver.Columns(f.opener.DatabasePath(testDB), "t1")
	assert.Equal(t, []engine.Column{{Name: "a", TypeName: "INTEGER"}, {Name: "b", TypeName: "TEXT"}}, cols)
	assert.Contains(t, f.driver.Statements(), `CREATE TABLE "t1" ("a" INTEGER, "b" TEXT)`)
	assert.Zero(t, f.driver.OpenConns())
	assert.Zero(t, f.driver.OpenDatabases())
	assert.False(t, f.locks.Holds(int64(testDB)))
}

func TestUtility_IgnoresOtherStatements(t *testing.T) {
	f := newFixture(t)
	u := f.utility(t)
	ctx := context.Background()

	handled, err := u.ProcessUtility(ctx, &host.CreateStmt{
		Name:         "heap1",
		AccessMethod: "heap",
		Columns:      []host.ColumnDef{{Name: "a", TypeName: "json"}},
	}, "CREATE TABLE heap1 (a json)")
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = u.ProcessUtility(ctx, &host.OtherUtilityStmt{Tag: "VACUUM"}, "VACUUM")
	require.NoError(t, err)
	assert.False(t, handled)

	assert.Empty(t, f.driver.Statements())
}

func TestUtility_UnsupportedColumnType(t *testing.T) {
	f := newFixture(t)

	_, err := f.utility(t).ProcessUtility(context.Background(), &host.CreateStmt{
		Name:         "t3",
		AccessMethod: "quack",
		Columns:      []host.ColumnDef{{Name: "a", TypeName: "integer"}, {Name: "doc", TypeName: "json"}},
	}, "CREATE TABLE t3 (a integer, doc json) USING quack")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedType))
	assert.Contains(t, err.Error(), "unsupported quack type: 114")
	assert.Empty(t, f.driver.Statements())
}

func TestUtility_EngineRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	stmt := &host.CreateStmt{
		Name:         "t1",
		AccessMethod: "quack",
		Columns:      []host.ColumnDef{{Name: "a", TypeName: "integer"}},
	}
	_, err := f.utility(t).ProcessUtility(context.Background(), stmt, "CREATE TABLE t1 (a integer) USING quack")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQueryExecution))

	stmt.IfNotExists = true
	_, err = f.utility(t).ProcessUtility(context.Background(), stmt, "CREATE TABLE IF NOT EXISTS t1 (a integer) USING quack")
	require.NoError(t, err)
}

func TestExecutor_StreamsEngineRows(t *testing.T) {
	f := newFixture(t)
	f.seed(t, [2]interface{}{int32(1), "x"}, [2]interface{}{nil, "y"})

	dest := &collector{}
	handled, err := f.executor(t).ExecutorRun(context.Background(), &host.QueryDesc{
		Operation:  host.CmdSelect,
		SourceText: "SELECT * FROM t1",
		RangeTable: []host.RangeTblEntry{{Kind: host.RTERelation, RelID: 1}},
		TupleDesc: host.NewTupleDesc(
			host.Attribute{Name: "a", TypeOID: host.Int4OID, TypeMod: -1},
			host.Attribute{Name: "b", TypeOID: host.TextOID, TypeMod: -1},
		),
		Dest: dest,
	})

	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, dest.started)
	assert.True(t, dest.shutdown)
	assert.Equal(t, [][]interface{}{{int32(1), "x"}, {nil, "y"}}, dest.rows)
	assert.Contains(t, f.driver.Statements(), "SET preserve_insertion_order = true")
	assert.Zero(t, f.driver.OpenConns())
}

func TestExecutor_FallsThrough(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t)

	tests := []struct {
		name string
		qd   *host.QueryDesc
	}{
		{"not a select", &host.QueryDesc{
			Operation:  host.CmdInsert,
			RangeTable: []host.RangeTblEntry{{Kind: host.RTERelation, RelID: 1}},
		}},
		{"no relations", &host.QueryDesc{
			Operation:  host.CmdSelect,
			RangeTable: []host.RangeTblEntry{{Kind: host.RTEValues}},
		}},
		{"empty range table", &host.QueryDesc{Operation: host.CmdSelect}},
		{"mixed access methods", &host.QueryDesc{
			Operation: host.CmdSelect,
			RangeTable: []host.RangeTblEntry{
				{Kind: host.RTERelation, RelID: 1},
				{Kind: host.RTERelation, RelID: 3},
				{Kind: host.RTEJoin},
			},
		}},
		{"function scan", &host.QueryDesc{
			Operation: host.CmdSelect,
			RangeTable: []host.RangeTblEntry{
				{Kind: host.RTERelation, RelID: 1},
				{Kind: host.RTEFunction},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled, err := e.ExecutorRun(context.Background(), tt.qd)
			require.NoError(t, err)
			assert.False(t, handled)
		})
	}
	assert.Empty(t, f.driver.Statements())
}

func TestExecutor_JoinOfEngineTablesIsHandled(t *testing.T) {
	f := newFixture(t)
	owned, err := f.executor(t).engineOwned(context.Background(), []host.RangeTblEntry{
		{Kind: host.RTERelation, RelID: 1},
		{Kind: host.RTERelation, RelID: 2},
		{Kind: host.RTEJoin},
		{Kind: host.RTESubquery},
	})
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestExecutor_UnknownRelation(t *testing.T) {
	f := newFixture(t)
	_, err := f.executor(t).ExecutorRun(context.Background(), &host.QueryDesc{
		Operation:  host.CmdSelect,
		RangeTable: []host.RangeTblEntry{{Kind: host.RTERelation, RelID: 99}},
	})
	require.Error(t, err)
}

func TestExecutor_QueryErrorBeforeStartup(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.driver.QueryErr = stderrors.New("Binder Error: something")

	dest := &collector{}
	handled, err := f.executor(t).ExecutorRun(context.Background(), &host.QueryDesc{
		Operation:  host.CmdSelect,
		SourceText: "SELECT * FROM t1",
		RangeTable: []host.RangeTblEntry{{Kind: host.RTERelation, RelID: 1}},
		Dest:       dest,
	})

	assert.True(t, handled)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQueryExecution))
	assert.False(t, dest.started)
	assert.Zero(t, f.driver.OpenConns())
}

func TestStreamQuery_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, [2]interface{}{int32(1), "x"}, [2]interface{}{int32(2), "y"}, [2]interface{}{int32(3), "z"})

	dest := &collector{failAt: 2}
	var count uint64
	err := f.opener.WithConnection(context.Background(), f.locks, testDB, true, func(ctx context.Context, conn engine.Conn) error {
		var err error
		count, err = StreamQuery(ctx, conn, host.CmdSelect, "SELECT a, b FROM t1", nil, dest)
		return err
	})

	require.Error(t, err)
	assert.Equal(t, uint64(1), count)
	assert.Len(t, dest.rows, 1)
	assert.True(t, dest.shutdown)
}

func TestStreamQuery_DerivesDescriptor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, [2]interface{}{int32(7), "q"})

	dest := &collector{}
	err := f.opener.WithConnection(context.Background(), f.locks, testDB, true, func(ctx context.Context, conn engine.Conn) error {
		_, err := StreamQuery(ctx, conn, host.CmdSelect, "SELECT b, a FROM t1", nil, dest)
		return err
	})

	require.NoError(t, err)
	require.NotNil(t, dest.desc)
	assert.Equal(t, host.TextOID, dest.desc.Attrs[0].TypeOID)
	assert.Equal(t, host.Int4OID, dest.desc.Attrs[1].TypeOID)
	assert.Equal(t, [][]interface{}{{"q", int32(7)}}, dest.rows)
}

func TestStreamQuery_ColumnCountMismatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	dest := &collector{}
	err := f.opener.WithConnection(context.Background(), f.locks, testDB, true, func(ctx context.Context, conn engine.Conn) error {
		desc := host.NewTupleDesc(host.Attribute{Name: "a", TypeOID: host.Int4OID, TypeMod: -1})
		_, err := StreamQuery(ctx, conn, host.CmdSelect, "SELECT a, b FROM t1", desc, dest)
		return err
	})
	require.Error(t, err)
	assert.False(t, dest.started)
}
