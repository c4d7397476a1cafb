package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/cuemby/zkbalancer/pkg/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Executor, *volume.LocalDriver) {
	t.Helper()
	driver, err := volume.NewLocalDriver(t.TempDir())
	require.NoError(t, err)
	return NewExecutor(driver), driver
}

func TestMigrateMovesFile(t *testing.T) {
	exec, driver := setup(t)

	path, _, err := driver.Put("zk1", "u1_notes.txt", strings.NewReader("notes"))
	require.NoError(t, err)
	artifact := &types.Artifact{ID: 7, Node: "zk1", Path: path}

	result, err := exec.Migrate(context.Background(), artifact, "zk2")
	require.NoError(t, err)

	assert.Equal(t, "zk2", result.Node)
	assert.Equal(t, filepath.Join(driver.NodePath("zk2"), "u1_notes.txt"), result.Path)
	assert.FileExists(t, result.Path)
	assert.NoFileExists(t, path)

	// The record is the caller's to update
	assert.Equal(t, "zk1", artifact.Node)
	assert.Equal(t, path, artifact.Path)
}

func TestMigrateSourceMissing(t *testing.T) {
	exec, driver := setup(t)

	artifact := &types.Artifact{ID: 3, Node: "zk1", Path: filepath.Join(driver.NodePath("zk1"), "lost.bin")}
	_, err := exec.Migrate(context.Background(), artifact, "zk2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, volume.ErrSourceMissing))
	_, statErr := os.Stat(driver.NodePath("zk2"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMigrateRejectsBadTarget(t *testing.T) {
	exec, driver := setup(t)
	path, _, err := driver.Put("zk1", "a.bin", strings.NewReader("a"))
	require.NoError(t, err)
	artifact := &types.Artifact{ID: 1, Node: "zk1", Path: path}

	_, err = exec.Migrate(context.Background(), artifact, "")
	assert.Error(t, err)

	_, err = exec.Migrate(context.Background(), artifact, "zk1")
	assert.Error(t, err)
	assert.FileExists(t, path)
}

func TestMigrateCancelledContext(t *testing.T) {
	exec, driver := setup(t)
	path, _, err := driver.Put("zk1", "a.bin", strings.NewReader("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = exec.Migrate(ctx, &types.Artifact{ID: 1, Node: "zk1", Path: path}, "zk2")
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, path)
}

func TestMigrateTargetNameTaken(t *testing.T) {
	exec, driver := setup(t)

	path, _, err := driver.Put("zk1", "demo-abc123.bin", strings.NewReader("from-zk1"))
	require.NoError(t, err)
	_, _, err = driver.Put("zk2", "demo-abc123.bin", strings.NewReader("owned-by-zk2"))
	require.NoError(t, err)

	_, err = exec.Migrate(context.Background(), &types.Artifact{ID: 5, Node: "zk1", Path: path}, "zk2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, volume.ErrTargetExists))
	assert.FileExists(t, path)
}
