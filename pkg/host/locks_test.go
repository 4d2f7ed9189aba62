package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quack/pkg/errors"
)

func TestLockSession_Reentrant(t *testing.T) {
	s := NewLockManager().Session("a")
	ctx := context.Background()

	require.NoError(t, s.AdvisoryXactLock(ctx, 5))
	require.NoError(t, s.AdvisoryXactLock(ctx, 5))
	assert.True(t, s.Holds(5))

	s.ReleaseAll()
	assert.False(t, s.Holds(5))
}

func TestLockSession_SerializesOwners(t *testing.T) {
	m := NewLockManager()
	a, b := m.Session("a"), m.Session("b")
	ctx := context.Background()

	require.NoError(t, a.AdvisoryXactLock(ctx, 7))

	acquired := make(chan struct{})
	go func() {
		_ = b.AdvisoryXactLock(ctx, 7)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second session acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	a.ReleaseAll()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second session never acquired the released lock")
	}
	b.ReleaseAll()
}

func TestLockSession_CancelledWait(t *testing.T) {
	m := NewLockManager()
	a, b := m.Session("a"), m.Session("b")
	require.NoError(t, a.AdvisoryXactLock(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.AdvisoryXactLock(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLock))
	assert.False(t, b.Holds(1))
}
