package enginetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quack/internal/engine"
)

func openConn(t *testing.T, d *Driver) engine.Conn {
	t.Helper()
	db, err := d.Open(context.Background(), "test.duckdb")
	require.NoError(t, err)
	conn, err := db.Connect(context.Background())
	require.NoError(t, err)
	return conn
}

func TestConn_TransactionVisibility(t *testing.T) {
	ctx := context.Background()
	d := NewDriver()
	writer := openConn(t, d)
	reader := openConn(t, d)

	require.NoError(t, writer.Exec(ctx, `CREATE TABLE "t1" ("a" INTEGER, "b" TEXT)`))
	require.NoError(t, writer.Exec(ctx, "BEGIN TRANSACTION"))

	app, err := writer.NewAppender(ctx, "t1")
	require.NoError(t, err)
	require.NoError(t, app.AppendInt32(1))
	require.NoError(t, app.AppendVarchar([]byte("a")))
	require.NoError(t, app.EndRow())
	require.NoError(t, app.Close())

	rows, err := reader.Query(ctx, "SELECT * FROM t1")
	require.NoError(t, err)
	assert.False(t, rows.Next(), "uncommitted rows must not be visible to other connections")

	require.NoError(t, writer.Exec(ctx, "COMMIT"))
	assert.Equal(t, [][]interface{}{{int32(1), "a"}}, d.Rows("test.duckdb", "t1"))
}

func TestConn_RollbackAndPartialRows(t *testing.T) {
	ctx := context.Background()
	d := NewDriver()
	conn := openConn(t, d)

	require.NoError(t, conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS t2 (a INTEGER, b DECIMAL(18,3))`))
	require.NoError(t, conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS t2 (a INTEGER)`))
	assert.Equal(t, "DECIMAL(18,3)", d.Columns("test.duckdb", "t2")[1].TypeName)

	require.NoError(t, conn.Exec(ctx, "BEGIN"))
	app, err := conn.NewAppender(ctx, "t2")
	require.NoError(t, err)

	require.NoError(t, app.AppendInt32(1))
	assert.Error(t, app.EndRow(), "a short row is rejected")

	require.NoError(t, app.AppendInt32(2))
	app.DiscardRow()

	require.NoError(t, app.AppendInt32(3))
	require.NoError(t, app.AppendNull())
	require.NoError(t, app.EndRow())
	require.NoError(t, app.Close())
	require.NoError(t, conn.Exec(ctx, "ROLLBACK"))

	assert.Empty(t, d.Rows("test.duckdb", "t2"))
}

func TestConn_SelectColumns(t *testing.T) {
	ctx := context.Background()
	d := NewDriver()
	conn := openConn(t, d)

	require.NoError(t, conn.Exec(ctx, `CREATE TABLE t3 (a INTEGER, b VARCHAR)`))
	app, err := conn.NewAppender(ctx, "t3")
	require.NoError(t, err)
	require.NoError(t, app.AppendInt32(7))
	require.NoError(t, app.AppendVarchar([]byte("x")))
	require.NoError(t, app.EndRow())
	require.NoError(t, app.Close())

	rows, err := conn.Query(ctx, "select b, a from t3;")
	require.NoError(t, err)
	assert.Equal(t, []engine.Column{{Name: "b", TypeName: "VARCHAR"}, {Name: "a", TypeName: "INTEGER"}}, rows.Columns())
	require.True(t, rows.Next())
	assert.Equal(t, "x", rows.Value(0))
	assert.Equal(t, int32(7), rows.Value(1))
	assert.False(t, rows.Next())
}
