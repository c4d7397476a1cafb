package nodestate

import (
	"errors"
	"testing"

	"github.com/cuemby/zkbalancer/pkg/events"
	"github.com/cuemby/zkbalancer/pkg/storage"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *storage.BoltStore) {
	t.Helper()
	bolt, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	return NewStore(bolt, events.NewAuditor(bolt, nil), []string{"zk1", "zk2", "zk3"}), bolt
}

func TestSetDrainAndUndrain(t *testing.T) {
	store, bolt := newTestStore(t)

	state, err := store.SetDrain("zk2", true, "  disk replacement ", "admin")
	require.NoError(t, err)
	assert.True(t, state.Drained)
	assert.Equal(t, "disk replacement", state.Reason)
	assert.False(t, state.UpdatedAt.IsZero())

	drained, err := store.Drained()
	require.NoError(t, err)
	assert.Equal(t, []string{"zk2"}, drained)

	state, err = store.SetDrain("zk2", false, "ignored", "admin")
	require.NoError(t, err)
	assert.False(t, state.Drained)
	assert.Empty(t, state.Reason)

	states, err := store.GetStates()
	require.NoError(t, err)
	assert.False(t, states["zk2"].Drained)

	ops, err := bolt.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "undrain", ops[0].Action)
	assert.Equal(t, "drain", ops[1].Action)
	assert.Equal(t, "admin", ops[1].Actor)
	assert.Equal(t, "zk2", ops[1].Node)
	assert.Contains(t, ops[1].Details, "disk replacement")
}

func TestSetDrainIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.SetDrain("zk1", true, "", "admin")
	require.NoError(t, err)
	second, err := store.SetDrain("zk1", true, "", "admin")
	require.NoError(t, err)

	assert.Equal(t, first.Drained, second.Drained)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	drained, err := store.Drained()
	require.NoError(t, err)
	assert.Equal(t, []string{"zk1"}, drained)
}

func TestSetDrainRejectsUnknownNode(t *testing.T) {
	store, bolt := newTestStore(t)

	_, err := store.SetDrain("zk9", true, "", "admin")
	assert.True(t, errors.Is(err, ErrInvalidDrainTarget))

	states, err := bolt.GetNodeStates()
	require.NoError(t, err)
	assert.Empty(t, states, "rejected before any state change")

	ops, err := bolt.ListAudit(0)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

type failingBackend struct{}

func (failingBackend) GetNodeStates() (map[string]types.DrainState, error) {
	return nil, storage.ErrStoreUnavailable
}

func (failingBackend) SetNodeState(string, bool, string) (types.DrainState, error) {
	return types.DrainState{}, storage.ErrStoreUnavailable
}

func TestStoreUnavailablePropagates(t *testing.T) {
	store := NewStore(failingBackend{}, nil, []string{"zk1"})

	_, err := store.SetDrain("zk1", true, "", "admin")
	assert.True(t, errors.Is(err, storage.ErrStoreUnavailable))

	_, err = store.GetStates()
	assert.True(t, errors.Is(err, storage.ErrStoreUnavailable))
}

func TestNodesKeepsConfiguredOrder(t *testing.T) {
	store := NewStore(failingBackend{}, nil, []string{"zk3", "zk1", "zk3", "zk2"})
	assert.Equal(t, []string{"zk3", "zk1", "zk2"}, store.Nodes())
}
