package manager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/zkbalancer/pkg/artifact"
	"github.com/cuemby/zkbalancer/pkg/config"
	"github.com/cuemby/zkbalancer/pkg/nodestate"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	// Nothing listens on port 1; every probe is refused immediately
	cfg.Nodes = []string{"127.0.0.1:1", "127.0.0.2:1", "127.0.0.3:1"}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.FilesDir = t.TempDir()
	cfg.Probe.Timeout = 200 * time.Millisecond
	cfg.Probe.Retries = 0
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.Threshold = 2
	cfg.Metrics.Addr = ""
	cfg.Metrics.CollectInterval = time.Hour
	return cfg
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Nodes = nil
	_, err := NewManager(cfg)
	assert.Error(t, err)
}

func TestManagerWiring(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	assert.Equal(t, []string{"127.0.0.1", "127.0.0.2", "127.0.0.3"}, m.Nodes())

	for i := 0; i < 3; i++ {
		_, err := m.Artifacts().Upload(ctx, artifact.UploadRequest{
			Filename: "f.bin",
			Reader:   strings.NewReader("data"),
			Node:     "127.0.0.1",
			Actor:    "test",
		})
		require.NoError(t, err)
	}

	result, err := m.Scheduler().RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, result.Executed)
	assert.Equal(t, map[string]int{"127.0.0.1": 2, "127.0.0.2": 1, "127.0.0.3": 0}, result.After.Counts)

	_, err = m.NodeStates().SetDrain("127.0.0.3", true, "maintenance", "admin")
	require.NoError(t, err)
	_, err = m.NodeStates().SetDrain("zk9", true, "", "admin")
	assert.True(t, errors.Is(err, nodestate.ErrInvalidDrainTarget))

	task, err := m.Tasks().Create("127.0.0.2", nil)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusQueued, task.Status)

	ops, err := m.Store().ListAudit(0)
	require.NoError(t, err)
	var actions []string
	for _, op := range ops {
		actions = append(actions, op.Action)
	}
	assert.Equal(t, []string{"drain", types.ActionAutoMigrate, "upload", "upload", "upload"}, actions)
}

func TestOverviewWithUnreachableCluster(t *testing.T) {
	m := newTestManager(t)

	overview, err := m.Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, overview.Cluster.Nodes, 3)
	for _, node := range overview.Cluster.Nodes {
		assert.Equal(t, types.NodeStateDown, node.State)
		assert.NotEmpty(t, node.Error)
	}
	assert.Empty(t, overview.Cluster.Leader)
	assert.Empty(t, overview.Files)
	assert.Empty(t, overview.Mirrored)
}

func TestStartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Interval = 10 * time.Millisecond
	m, err := NewManager(cfg)
	require.NoError(t, err)

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx))

	assert.Error(t, m.Start())
}
