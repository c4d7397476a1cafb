package artifact

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/cuemby/zkbalancer/pkg/volume"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNoEligibleNode is returned by automatic placement when every
	// configured node is drained
	ErrNoEligibleNode = errors.New("no eligible node: every node is drained")

	// ErrUnknownNode is returned when a pinned node is not configured
	ErrUnknownNode = errors.New("unknown node")
)

// DefaultFilename is used for uploads without a name
const DefaultFilename = "uploaded.bin"

// Store is the part of the record store the service uses
type Store interface {
	CreateArtifact(artifact *types.Artifact) error
	GetArtifact(id uint64) (*types.Artifact, error)
	ListArtifacts() ([]*types.Artifact, error)
	DeleteArtifact(id uint64) error
}

// StateSource returns node drain states
type StateSource interface {
	GetStates() (map[string]types.DrainState, error)
}

// Publisher mirrors artifact metadata
type Publisher interface {
	PublishArtifact(ctx context.Context, artifact *types.Artifact)
	DeleteArtifact(ctx context.Context, artifact *types.Artifact)
}

// Auditor records operations
type Auditor interface {
	Record(entry *types.AuditEntry) error
}

// UploadRequest describes one file to ingest
type UploadRequest struct {
	Filename string
	Reader   io.Reader
	// Node pins the upload; empty means automatic placement
	Node  string
	Actor string
}

// GenerateRequest describes a batch of generated demo files
type GenerateRequest struct {
	Count  int
	SizeKB int
	// Node pins every file; empty means automatic placement per file
	Node  string
	Actor string
}

// GenerateResult reports a generated batch
type GenerateResult struct {
	Created []*types.Artifact `json:"created" yaml:"created"`
	PerNode map[string]int    `json:"per_node" yaml:"per_node"`
}

// Service ingests, lists and deletes artifacts
type Service struct {
	nodes   []string
	store   Store
	states  StateSource
	driver  volume.Driver
	mirror  Publisher
	auditor Auditor
	logger  zerolog.Logger
	now     func() time.Time
	newUUID func() string

	// mu serialises placement so concurrent uploads see each other's counts
	mu sync.Mutex
	// migrations is held by the scheduler while a file is being moved
	migrations sync.Locker
}

// NewService creates an artifact service. mirror and auditor may be nil.
func NewService(nodes []string, store Store, states StateSource, driver volume.Driver, mirror Publisher, auditor Auditor) *Service {
	return &Service{
		nodes:   append([]string(nil), nodes...),
		store:   store,
		states:  states,
		driver:  driver,
		mirror:  mirror,
		auditor: auditor,
		logger:  log.WithComponent("artifact"),
		now:     time.Now,
		newUUID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Upload stores the request's bytes on the selected node and creates the
// artifact record
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*types.Artifact, error) {
	if req.Reader == nil {
		return nil, fmt.Errorf("upload has no content")
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = DefaultFilename
	}

	action := types.ActionUpload
	if req.Node != "" {
		action = types.ActionBulkUploadPinned
	}

	s.mu.Lock()
	artifact, err := s.ingest(req.Node, action, func(id string) (string, io.Reader) {
		return id + "_" + filename, req.Reader
	}, filename)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.mirror != nil {
		s.mirror.PublishArtifact(ctx, artifact)
	}
	s.audit(&types.AuditEntry{
		Actor:   req.Actor,
		Action:  "upload",
		Node:    artifact.Node,
		Status:  types.AuditStatusSuccess,
		Details: fmt.Sprintf("Uploaded %s (%d bytes) to %s", artifact.Filename, artifact.SizeBytes, artifact.Node),
	})
	return artifact, nil
}

// Generate creates Count files of random content, each at least SizeKB
// kibibytes
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	result := GenerateResult{Created: []*types.Artifact{}, PerNode: map[string]int{}}
	if req.Count <= 0 {
		return result, nil
	}
	size := int64(req.SizeKB)
	if size < 1 {
		size = 1
	}
	size *= 1024

	action := types.ActionBulkUploadAuto
	if req.Node != "" {
		action = types.ActionBulkUploadPinned
	}

	for i := 0; i < req.Count; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s.mu.Lock()
		artifact, err := s.ingest(req.Node, action, func(id string) (string, io.Reader) {
			return "demo-" + id[:6] + ".bin", io.LimitReader(rand.Reader, size)
		}, "")
		s.mu.Unlock()
		if err != nil {
			return result, err
		}

		if s.mirror != nil {
			s.mirror.PublishArtifact(ctx, artifact)
		}
		result.Created = append(result.Created, artifact)
		result.PerNode[artifact.Node]++
	}

	s.audit(&types.AuditEntry{
		Actor:        req.Actor,
		Action:       "bulk_upload",
		Node:         req.Node,
		Status:       types.AuditStatusSuccess,
		Details:      fmt.Sprintf("Generated %d files of %d KB", len(result.Created), size/1024),
		AfterMetrics: map[string]any{"per_node": result.PerNode},
	})
	return result, nil
}

// ingest places, writes and records one artifact. Callers hold s.mu.
func (s *Service) ingest(pinned, action string, content func(id string) (string, io.Reader), filename string) (*types.Artifact, error) {
	node, err := s.placement(pinned)
	if err != nil {
		return nil, err
	}

	id := s.newUUID()
	name, r := content(id)
	if filename == "" {
		filename = name
	}

	path, size, err := s.driver.Put(node, name, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s on %s: %w", filename, node, err)
	}

	now := s.now().UTC()
	artifact := &types.Artifact{
		UUID:      id,
		Filename:  filename,
		SizeBytes: size,
		Node:      node,
		Path:      path,
		CreatedAt: now,
		History: []types.HistoryEvent{
			{Timestamp: now, Action: action, Node: node},
		},
	}
	if err := s.store.CreateArtifact(artifact); err != nil {
		_ = s.driver.Remove(path)
		return nil, fmt.Errorf("failed to create artifact record: %w", err)
	}

	logger := log.WithArtifact(artifact.ID)
	logger.Info().
		Str("node", node).
		Str("filename", filename).
		Int64("size_bytes", size).
		Msg("Artifact stored")
	return artifact, nil
}

// placement returns the pinned node, or the least-loaded non-drained
// configured node with ties resolved by configured order
func (s *Service) placement(pinned string) (string, error) {
	if pinned != "" {
		for _, node := range s.nodes {
			if node == pinned {
				return pinned, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, pinned)
	}

	counts, err := s.Counts()
	if err != nil {
		return "", err
	}
	states, err := s.states.GetStates()
	if err != nil {
		return "", fmt.Errorf("failed to read node states: %w", err)
	}

	best := ""
	for _, node := range s.nodes {
		if states[node].Drained {
			continue
		}
		if best == "" || counts[node] < counts[best] {
			best = node
		}
	}
	if best == "" {
		return "", ErrNoEligibleNode
	}
	return best, nil
}

// Get returns one artifact
func (s *Service) Get(id uint64) (*types.Artifact, error) {
	return s.store.GetArtifact(id)
}

// List returns every artifact in listing order
func (s *Service) List() ([]*types.Artifact, error) {
	return s.store.ListArtifacts()
}

// Counts returns artifacts per node; every configured node is present
func (s *Service) Counts() (map[string]int, error) {
	artifacts, err := s.store.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	counts := make(map[string]int, len(s.nodes))
	for _, node := range s.nodes {
		counts[node] = 0
	}
	for _, a := range artifacts {
		counts[a.Node]++
	}
	return counts, nil
}

// SetMigrationLock makes Delete wait for any in-flight migration, so the
// record it reads always names the file's current location
func (s *Service) SetMigrationLock(l sync.Locker) {
	s.migrations = l
}

// Delete removes the file, the record and the mirrored metadata
func (s *Service) Delete(ctx context.Context, id uint64, actor string) error {
	if s.migrations != nil {
		s.migrations.Lock()
		defer s.migrations.Unlock()
	}

	artifact, err := s.store.GetArtifact(id)
	if err != nil {
		return err
	}

	if err := s.driver.Remove(artifact.Path); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if err := s.store.DeleteArtifact(id); err != nil {
		return fmt.Errorf("failed to delete artifact record: %w", err)
	}
	if s.mirror != nil {
		s.mirror.DeleteArtifact(ctx, artifact)
	}

	s.audit(&types.AuditEntry{
		Actor:   actor,
		Action:  "delete",
		Node:    artifact.Node,
		Status:  types.AuditStatusSuccess,
		Details: fmt.Sprintf("Deleted %s from %s", artifact.Filename, artifact.Node),
	})
	return nil
}

func (s *Service) audit(entry *types.AuditEntry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("Failed to record audit entry")
	}
}
