package artifact

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/zkbalancer/pkg/events"
	"github.com/cuemby/zkbalancer/pkg/nodestate"
	"github.com/cuemby/zkbalancer/pkg/storage"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/cuemby/zkbalancer/pkg/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []string
	deleted   []string
}

func (p *recordingPublisher) PublishArtifact(ctx context.Context, a *types.Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, a.UUID)
}

func (p *recordingPublisher) DeleteArtifact(ctx context.Context, a *types.Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, a.UUID)
}

type fixture struct {
	svc    *Service
	store  *storage.BoltStore
	nodes  *nodestate.Store
	mirror *recordingPublisher
	driver *volume.LocalDriver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	nodes := []string{"zk1", "zk2", "zk3"}

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	driver, err := volume.NewLocalDriver(t.TempDir())
	require.NoError(t, err)

	auditor := events.NewAuditor(store, nil)
	ns := nodestate.NewStore(store, auditor, nodes)
	mirror := &recordingPublisher{}

	return &fixture{
		svc:    NewService(nodes, store, ns, driver, mirror, auditor),
		store:  store,
		nodes:  ns,
		mirror: mirror,
		driver: driver,
	}
}

func upload(t *testing.T, f *fixture, name, node string) *types.Artifact {
	t.Helper()
	a, err := f.svc.Upload(context.Background(), UploadRequest{
		Filename: name,
		Reader:   strings.NewReader("hello " + name),
		Node:     node,
		Actor:    "tester",
	})
	require.NoError(t, err)
	return a
}

func TestUploadStoresFileAndRecord(t *testing.T) {
	f := newFixture(t)

	a := upload(t, f, "notes.txt", "")

	assert.Equal(t, "zk1", a.Node)
	assert.Equal(t, "notes.txt", a.Filename)
	assert.Equal(t, int64(len("hello notes.txt")), a.SizeBytes)
	assert.Len(t, a.UUID, 32)
	assert.True(t, strings.HasSuffix(a.Path, a.UUID+"_notes.txt"))
	require.Len(t, a.History, 1)
	assert.Equal(t, types.ActionUpload, a.History[0].Action)
	assert.Equal(t, "zk1", a.History[0].Node)

	content, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello notes.txt", string(content))

	stored, err := f.store.GetArtifact(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.UUID, stored.UUID)

	assert.Equal(t, []string{a.UUID}, f.mirror.published)

	ops, err := f.store.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "upload", ops[0].Action)
	assert.Equal(t, "tester", ops[0].Actor)
}

func TestUploadDefaultFilename(t *testing.T) {
	f := newFixture(t)
	a := upload(t, f, "  ", "")
	assert.Equal(t, DefaultFilename, a.Filename)
}

func TestAutomaticPlacementBalances(t *testing.T) {
	f := newFixture(t)

	var placed []string
	for i := 0; i < 6; i++ {
		placed = append(placed, upload(t, f, "f.bin", "").Node)
	}

	assert.Equal(t, []string{"zk1", "zk2", "zk3", "zk1", "zk2", "zk3"}, placed)

	counts, err := f.svc.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"zk1": 2, "zk2": 2, "zk3": 2}, counts)
}

func TestAutomaticPlacementSkipsDrained(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.SetDrain("zk1", true, "disk swap", "admin")
	require.NoError(t, err)

	a := upload(t, f, "a.bin", "")
	assert.Equal(t, "zk2", a.Node)
}

func TestAutomaticPlacementAllDrained(t *testing.T) {
	f := newFixture(t)
	for _, node := range []string{"zk1", "zk2", "zk3"} {
		_, err := f.nodes.SetDrain(node, true, "", "admin")
		require.NoError(t, err)
	}

	_, err := f.svc.Upload(context.Background(), UploadRequest{Filename: "a", Reader: strings.NewReader("x")})
	assert.True(t, errors.Is(err, ErrNoEligibleNode))

	artifacts, err := f.svc.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestPinnedUpload(t *testing.T) {
	f := newFixture(t)

	a := upload(t, f, "pinned.bin", "zk3")
	assert.Equal(t, "zk3", a.Node)
	assert.Equal(t, types.ActionBulkUploadPinned, a.History[0].Action)

	// Pinning ignores drain state
	_, err := f.nodes.SetDrain("zk2", true, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, "zk2", upload(t, f, "b.bin", "zk2").Node)

	_, err = f.svc.Upload(context.Background(), UploadRequest{Filename: "x", Reader: strings.NewReader("x"), Node: "zk9"})
	assert.True(t, errors.Is(err, ErrUnknownNode))
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Generate(context.Background(), GenerateRequest{Count: 4, SizeKB: 2, Actor: "demo"})
	require.NoError(t, err)

	require.Len(t, result.Created, 4)
	assert.Equal(t, map[string]int{"zk1": 2, "zk2": 1, "zk3": 1}, result.PerNode)
	for _, a := range result.Created {
		assert.Equal(t, int64(2048), a.SizeBytes)
		assert.True(t, strings.HasPrefix(a.Filename, "demo-"))
		assert.Equal(t, types.ActionBulkUploadAuto, a.History[0].Action)
	}
	assert.Len(t, f.mirror.published, 4)

	ops, err := f.store.ListAudit(0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "bulk_upload", ops[0].Action)
}

func TestGeneratePinned(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Generate(context.Background(), GenerateRequest{Count: 3, SizeKB: 0, Node: "zk2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"zk2": 3}, result.PerNode)
	assert.Equal(t, int64(1024), result.Created[0].SizeBytes)
	assert.Equal(t, types.ActionBulkUploadPinned, result.Created[0].History[0].Action)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	a := upload(t, f, "gone.txt", "")

	require.NoError(t, f.svc.Delete(context.Background(), a.ID, "admin"))

	_, err := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = f.store.GetArtifact(a.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Equal(t, []string{a.UUID}, f.mirror.deleted)

	ops, err := f.store.ListAudit(1)
	require.NoError(t, err)
	assert.Equal(t, "delete", ops[0].Action)

	err = f.svc.Delete(context.Background(), a.ID, "admin")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestDeleteWithMissingFile(t *testing.T) {
	f := newFixture(t)
	a := upload(t, f, "gone.txt", "")
	require.NoError(t, os.Remove(a.Path))

	assert.NoError(t, f.svc.Delete(context.Background(), a.ID, "admin"))
}

func TestDeleteWaitsForMigration(t *testing.T) {
	f := newFixture(t)
	a := upload(t, f, "moving.txt", "zk1")

	var migrations sync.Mutex
	f.svc.SetMigrationLock(&migrations)
	migrations.Lock()

	done := make(chan error, 1)
	go func() {
		done <- f.svc.Delete(context.Background(), a.ID, "admin")
	}()

	select {
	case err := <-done:
		t.Fatalf("delete finished while a migration held the lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Move the file the way the scheduler does, then release
	newPath, err := f.driver.Move(a.Path, "zk2")
	require.NoError(t, err)
	node := "zk2"
	_, err = f.store.UpdateArtifact(a.ID, types.ArtifactUpdate{Node: &node, Path: &newPath})
	require.NoError(t, err)
	migrations.Unlock()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("delete did not finish after the migration")
	}

	assert.NoFileExists(t, newPath)
	assert.NoFileExists(t, a.Path)
	_, err = f.store.GetArtifact(a.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
