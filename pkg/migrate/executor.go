// Package migrate relocates one artifact's backing file to another node.
//
// The executor only moves bytes. Recording the history event, updating the
// record and notifying the mirror are the caller's job and are not
// transactional with the move: a crash in between leaves the file on the new
// node while the record still names the old one.
package migrate

import (
	"context"
	"fmt"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/cuemby/zkbalancer/pkg/volume"
)

// Result describes a completed move
type Result struct {
	Path string
	Node string
}

// Executor applies approved migrations
type Executor struct {
	driver volume.Driver
}

// NewExecutor creates a migration executor over a storage driver
func NewExecutor(driver volume.Driver) *Executor {
	return &Executor{driver: driver}
}

// Migrate moves the artifact's file into target's storage area. It returns
// an error wrapping volume.ErrSourceMissing if the recorded path no longer
// exists. The artifact itself is not modified.
func (e *Executor) Migrate(ctx context.Context, artifact *types.Artifact, target string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if target == "" {
		return Result{}, fmt.Errorf("artifact %d: empty target node", artifact.ID)
	}
	if target == artifact.Node {
		return Result{}, fmt.Errorf("artifact %d already on node %s", artifact.ID, target)
	}

	path, err := e.driver.Move(artifact.Path, target)
	if err != nil {
		return Result{}, fmt.Errorf("migrate artifact %d from %s to %s: %w", artifact.ID, artifact.Node, target, err)
	}

	logger := log.WithArtifact(artifact.ID)
	logger.Debug().
		Str("from", artifact.Node).
		Str("to", target).
		Str("path", path).
		Msg("Artifact file moved")

	return Result{Path: path, Node: target}, nil
}
