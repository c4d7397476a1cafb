package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func uploadEvent(ts time.Time, node string) types.HistoryEvent {
	return types.HistoryEvent{Timestamp: ts, Action: types.ActionUpload, Node: node}
}

func TestArtifactCreateGet(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	a := &types.Artifact{
		UUID:      "abc",
		Filename:  "report.pdf",
		SizeBytes: 1024,
		Node:      "zk1",
		Path:      "/data/zk1/abc_report.pdf",
		History:   []types.HistoryEvent{uploadEvent(ts, "zk1")},
	}
	require.NoError(t, store.CreateArtifact(a))
	assert.Equal(t, uint64(1), a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	got, err := store.GetArtifact(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, "zk1", got.Node)
	require.Len(t, got.History, 1)
	assert.True(t, got.History[0].Timestamp.Equal(ts))

	_, err = store.GetArtifact(99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListArtifactsOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Two records share a timestamp; ID breaks the tie
	for _, ts := range []time.Time{base, base.Add(time.Hour), base.Add(time.Hour), base.Add(-time.Hour)} {
		require.NoError(t, store.CreateArtifact(&types.Artifact{Node: "zk1", CreatedAt: ts}))
	}

	list, err := store.ListArtifacts()
	require.NoError(t, err)

	var ids []uint64
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uint64{3, 2, 1, 4}, ids)
}

func TestUpdateArtifactAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	a := &types.Artifact{Node: "zk1", Path: "/d/zk1/f", History: []types.HistoryEvent{uploadEvent(ts, "zk1")}}
	require.NoError(t, store.CreateArtifact(a))

	node, path := "zk2", "/d/zk2/f"
	history := append(append([]types.HistoryEvent{}, a.History...), types.HistoryEvent{
		Timestamp: ts.Add(time.Minute),
		Action:    types.ActionAutoMigrate,
		From:      "zk1",
		To:        "zk2",
	})

	updated, err := store.UpdateArtifact(a.ID, types.ArtifactUpdate{Node: &node, Path: &path, History: history})
	require.NoError(t, err)
	assert.Equal(t, "zk2", updated.Node)
	assert.Equal(t, "/d/zk2/f", updated.Path)
	assert.Len(t, updated.History, 2)

	// Dropping an event is rejected and leaves the record unchanged
	_, err = store.UpdateArtifact(a.ID, types.ArtifactUpdate{History: history[1:]})
	assert.True(t, errors.Is(err, ErrHistoryRewrite))

	// Altering an existing event is rejected as well
	altered := append([]types.HistoryEvent{}, history...)
	altered[0].Action = "tampered"
	_, err = store.UpdateArtifact(a.ID, types.ArtifactUpdate{History: altered})
	assert.True(t, errors.Is(err, ErrHistoryRewrite))

	got, err := store.GetArtifact(a.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 2)
	assert.Equal(t, types.ActionUpload, got.History[0].Action)

	// Nil fields are left alone
	_, err = store.UpdateArtifact(a.ID, types.ArtifactUpdate{})
	require.NoError(t, err)
	got, err = store.GetArtifact(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "zk2", got.Node)

	_, err = store.UpdateArtifact(42, types.ArtifactUpdate{Node: &node})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteArtifact(t *testing.T) {
	store := newTestStore(t)
	a := &types.Artifact{Node: "zk1"}
	require.NoError(t, store.CreateArtifact(a))

	require.NoError(t, store.DeleteArtifact(a.ID))
	_, err := store.GetArtifact(a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.DeleteArtifact(a.ID), ErrNotFound))
}

func TestNodeStatesLastWriteWins(t *testing.T) {
	store := newTestStore(t)

	states, err := store.GetNodeStates()
	require.NoError(t, err)
	assert.Empty(t, states)

	first, err := store.SetNodeState("zk1", true, "maintenance")
	require.NoError(t, err)
	assert.True(t, first.Drained)

	second, err := store.SetNodeState("zk1", false, "")
	require.NoError(t, err)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	states, err = store.GetNodeStates()
	require.NoError(t, err)
	require.Contains(t, states, "zk1")
	assert.False(t, states["zk1"].Drained)
	assert.Empty(t, states["zk1"].Reason)
}

func TestAuditNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for _, action := range []string{"upload", "drain", "auto_migrate"} {
		require.NoError(t, store.RecordAudit(&types.AuditEntry{Action: action, Status: types.AuditStatusSuccess}))
	}

	entries, err := store.ListAudit(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "auto_migrate", entries[0].Action)
	assert.Equal(t, "drain", entries[1].Action)
	assert.Equal(t, "system", entries[0].Actor)
	assert.False(t, entries[0].Timestamp.IsZero())

	all, err := store.ListAudit(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTaskUpsertKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	task := &types.Task{ID: "t1", Node: "zk1", Status: types.TaskStatusQueued}
	require.NoError(t, store.UpsertTask(task))

	clock = clock.Add(time.Minute)
	require.NoError(t, store.UpsertTask(&types.Task{ID: "t1", Node: "zk1", Status: types.TaskStatusRunning}))

	got, err := store.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusRunning, got.Status)
	assert.True(t, got.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, got.UpdatedAt.Equal(clock))
}

func TestListTasksLimitAndOrder(t *testing.T) {
	store := newTestStore(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	for _, id := range []string{"a", "b", "c"} {
		clock = clock.Add(time.Second)
		require.NoError(t, store.UpsertTask(&types.Task{ID: id, Status: types.TaskStatusQueued}))
	}

	tasks, err := store.ListTasks(2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "c", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)

	require.NoError(t, store.DeleteTask("c"))
	_, err = store.GetTask("c")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.ListArtifacts()
	assert.True(t, errors.Is(err, ErrStoreUnavailable))

	_, err = store.SetNodeState("zk1", true, "")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}
