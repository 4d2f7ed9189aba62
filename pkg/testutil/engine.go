package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quack/internal/engine"
	"github.com/ajitpratap0/quack/internal/engine/enginetest"
	"github.com/ajitpratap0/quack/pkg/host"
)

// EngineFixture is an in-memory engine with an opener over it and one lock
// session.
type EngineFixture struct {
	Driver *enginetest.Driver
	Opener *engine.Opener
	Locks  *host.LockSession
}

// NewEngineFixture creates a fixture whose database files live under dataDir.
func NewEngineFixture(t *testing.T, dataDir string) *EngineFixture {
	t.Helper()
	drv := enginetest.NewDriver()
	return &EngineFixture{
		Driver: drv,
		Opener: engine.NewOpener(drv, dataDir, TestLogger(t)),
		Locks:  host.NewLockManager().Session(t.Name()),
	}
}

// Exec runs statements on one transient connection to dbID and releases the
// lock afterwards.
func (f *EngineFixture) Exec(t *testing.T, dbID host.OID, statements ...string) {
	t.Helper()
	err := f.Opener.WithConnection(context.Background(), f.Locks, dbID, true, func(ctx context.Context, conn engine.Conn) error {
		for _, stmt := range statements {
			if err := conn.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	f.Locks.ReleaseAll()
	require.NoError(t, err)
}

// Rows returns the committed rows of table in dbID.
func (f *EngineFixture) Rows(dbID host.OID, table string) [][]interface{} {
	return f.Driver.Rows(f.Opener.DatabasePath(dbID), table)
}
