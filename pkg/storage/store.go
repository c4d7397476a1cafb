package storage

import (
	"errors"

	"github.com/cuemby/zkbalancer/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable is returned when the database cannot be used
	// (closed, or the file lock could not be acquired in time). Callers treat
	// it as transient.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrHistoryRewrite is returned when an update would drop or alter
	// existing history events
	ErrHistoryRewrite = errors.New("artifact history is append-only")
)

// Store defines the record-access contract used by the balancer.
// It is implemented by BoltStore.
type Store interface {
	// Artifacts
	CreateArtifact(artifact *types.Artifact) error
	GetArtifact(id uint64) (*types.Artifact, error)
	// ListArtifacts returns every artifact ordered by CreatedAt descending,
	// then ID descending
	ListArtifacts() ([]*types.Artifact, error)
	UpdateArtifact(id uint64, update types.ArtifactUpdate) (*types.Artifact, error)
	DeleteArtifact(id uint64) error

	// Node drain states
	GetNodeStates() (map[string]types.DrainState, error)
	SetNodeState(node string, drained bool, reason string) (types.DrainState, error)

	// Operations log
	RecordAudit(entry *types.AuditEntry) error
	// ListAudit returns at most limit entries, newest first. A limit <= 0
	// returns everything.
	ListAudit(limit int) ([]*types.AuditEntry, error)

	// Tasks
	UpsertTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	// ListTasks returns at most limit tasks ordered by UpdatedAt descending
	ListTasks(limit int) ([]*types.Task, error)
	DeleteTask(id string) error

	// Utility
	Close() error
}
