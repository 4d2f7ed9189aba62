package engine

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBDriver_SharesInstancePerFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DuckDB test in short mode")
	}
	ctx := context.Background()
	drv := NewDuckDBDriver(1, "")
	path := filepath.Join(t.TempDir(), "1.duckdb")

	a, err := drv.Open(ctx, path)
	require.NoError(t, err)
	b, err := drv.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.OpenInstances())

	require.NoError(t, a.Close())
	assert.Equal(t, 1, drv.OpenInstances())
	require.NoError(t, b.Close())
	assert.Equal(t, 0, drv.OpenInstances())
}

func TestDuckDBDriver_AppendCommitRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping DuckDB test in short mode")
	}
	ctx := context.Background()
	drv := NewDuckDBDriver(1, "")
	db, err := drv.Open(ctx, filepath.Join(t.TempDir(), "2.duckdb"))
	require.NoError(t, err)
	defer db.Close()

	conn, err := db.Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Exec(ctx, `CREATE TABLE "t" ("i" BIGINT, "s" TEXT, "d" DATE, "ts" TIMESTAMP)`))

	appendRow := func(i int64) {
		app, err := conn.NewAppender(ctx, "t")
		require.NoError(t, err)
		require.NoError(t, app.AppendInt64(i))
		require.NoError(t, app.AppendVarchar([]byte("x")))
		require.NoError(t, app.AppendDate(Date{Days: 10957}))
		require.NoError(t, app.AppendTimestamp(Timestamp{Micros: -1}))
		require.NoError(t, app.EndRow())
		require.NoError(t, app.Close())
	}

	require.NoError(t, conn.Exec(ctx, "BEGIN TRANSACTION"))
	appendRow(math.MinInt64)
	require.NoError(t, conn.Exec(ctx, "ROLLBACK"))

	require.NoError(t, conn.Exec(ctx, "BEGIN TRANSACTION"))
	appendRow(math.MaxInt64)
	require.NoError(t, conn.Exec(ctx, "COMMIT"))

	rows, err := conn.Query(ctx, `SELECT * FROM "t"`)
	require.NoError(t, err)
	defer rows.Close()

	assert.Equal(t, "BIGINT", rows.Columns()[0].TypeName)
	require.True(t, rows.Next())
	assert.Equal(t, int64(math.MaxInt64), rows.Value(0))
	assert.Equal(t, "x", rows.Value(1))
	assert.Equal(t, Date{Days: 10957}, rows.Value(2))
	assert.Equal(t, Timestamp{Micros: -1}, rows.Value(3))
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
}

func TestDateAndTimestampConversions(t *testing.T) {
	assert.Equal(t, Date{Days: 10957}, DateFromTime(time.Date(2000, 1, 1, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, Date{Days: -1}, DateFromTime(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), Date{}.Time())
	assert.Equal(t, Timestamp{Micros: -1}, TimestampFromTime(Timestamp{Micros: -1}.Time()))
}
