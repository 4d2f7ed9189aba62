package host

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_ExecutorChainOrder(t *testing.T) {
	var calls []string
	h := NewHooks(func(ctx context.Context, qd *QueryDesc) error {
		calls = append(calls, "standard")
		return nil
	}, nil)

	h.AddExecutorRun(ExecutorRunFunc(func(ctx context.Context, qd *QueryDesc) (bool, error) {
		calls = append(calls, "first")
		return false, nil
	}))
	h.AddExecutorRun(ExecutorRunFunc(func(ctx context.Context, qd *QueryDesc) (bool, error) {
		calls = append(calls, "second")
		return qd.Operation == CmdSelect, nil
	}))

	require.NoError(t, h.ExecutorRun(context.Background(), &QueryDesc{Operation: CmdSelect}))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	require.NoError(t, h.ExecutorRun(context.Background(), &QueryDesc{Operation: CmdInsert}))
	assert.Equal(t, []string{"first", "second", "standard"}, calls)
}

func TestHooks_UtilityErrorStopsChain(t *testing.T) {
	boom := stderrors.New("boom")
	standardCalled := false
	h := NewHooks(nil, func(ctx context.Context, stmt UtilityStmt, q string) error {
		standardCalled = true
		return nil
	})
	h.AddProcessUtility(ProcessUtilityFunc(func(ctx context.Context, stmt UtilityStmt, q string) (bool, error) {
		return false, boom
	}))

	err := h.ProcessUtility(context.Background(), &OtherUtilityStmt{Tag: "VACUUM"}, "VACUUM")
	assert.ErrorIs(t, err, boom)
	assert.False(t, standardCalled)
}

func TestHooks_FireSubXactRunsEveryCallback(t *testing.T) {
	h := NewHooks(nil, nil)
	var seen []SubTransactionID
	h.RegisterSubXactCallback(func(ctx context.Context, ev SubXactEvent, my, parent SubTransactionID) error {
		seen = append(seen, my)
		return stderrors.New("first failed")
	})
	h.RegisterSubXactCallback(func(ctx context.Context, ev SubXactEvent, my, parent SubTransactionID) error {
		seen = append(seen, parent)
		return nil
	})

	err := h.FireSubXact(context.Background(), SubXactEventAbort, 3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Equal(t, []SubTransactionID{3, 2}, seen)

	assert.NoError(t, h.FireXact(context.Background(), XactEventCommit))
}

func TestAccessMethodRegistry(t *testing.T) {
	r := NewAccessMethodRegistry()
	am := &namedAM{name: "quack"}

	require.NoError(t, r.Register(am))
	assert.Error(t, r.Register(am))

	got, ok := r.Lookup("quack")
	require.True(t, ok)
	assert.Same(t, am, got)

	_, ok = r.Lookup("heap")
	assert.False(t, ok)
}

type namedAM struct{ name string }

func (a *namedAM) Name() string { return a.name }

func (a *namedAM) TupleInsert(ctx context.Context, rel *Relation, slot *TupleSlot) error {
	return nil
}
