package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/zkbalancer/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketArtifacts  = []byte("artifacts")
	bucketNodeStates = []byte("node_states")
	bucketOperations = []byte("operations")
	bucketTasks      = []byte("tasks")
)

// DBFile is the database file name inside the data directory
const DBFile = "zkbalancer.db"

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", wrapUnavailable(err))
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketArtifacts,
			bucketNodeStates,
			bucketOperations,
			bucketTasks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	return wrapUnavailable(s.db.View(fn))
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	return wrapUnavailable(s.db.Update(fn))
}

// wrapUnavailable maps bbolt's closed/lock errors onto ErrStoreUnavailable
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) || errors.Is(err, bolt.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Artifact operations

// CreateArtifact assigns the next ID (and CreatedAt when unset) and stores the record
func (s *BoltStore) CreateArtifact(artifact *types.Artifact) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		artifact.ID = id
		if artifact.CreatedAt.IsZero() {
			artifact.CreatedAt = s.now().UTC()
		}
		if artifact.History == nil {
			artifact.History = []types.HistoryEvent{}
		}
		data, err := json.Marshal(artifact)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

func (s *BoltStore) GetArtifact(id uint64) (*types.Artifact, error) {
	var artifact types.Artifact
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketArtifacts).Get(itob(id))
		if data == nil {
			return fmt.Errorf("artifact %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &artifact)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (s *BoltStore) ListArtifacts() ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).ForEach(func(k, v []byte) error {
			var artifact types.Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return err
			}
			artifacts = append(artifacts, &artifact)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	SortArtifacts(artifacts)
	return artifacts, nil
}

// SortArtifacts orders artifacts newest first: CreatedAt descending, then ID
// descending
func SortArtifacts(artifacts []*types.Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// UpdateArtifact applies the non-nil fields of update. A new history must
// keep every existing event unchanged and may only add events at the end.
func (s *BoltStore) UpdateArtifact(id uint64, update types.ArtifactUpdate) (*types.Artifact, error) {
	var artifact types.Artifact
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("artifact %d: %w", id, ErrNotFound)
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return err
		}

		if update.Node != nil {
			artifact.Node = *update.Node
		}
		if update.Path != nil {
			artifact.Path = *update.Path
		}
		if update.History != nil {
			if !extendsHistory(artifact.History, update.History) {
				return fmt.Errorf("artifact %d: %w", id, ErrHistoryRewrite)
			}
			artifact.History = update.History
		}

		out, err := json.Marshal(&artifact)
		if err != nil {
			return err
		}
		return b.Put(itob(id), out)
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func extendsHistory(old, next []types.HistoryEvent) bool {
	if len(next) < len(old) {
		return false
	}
	for i := range old {
		if !sameEvent(old[i], next[i]) {
			return false
		}
	}
	return true
}

func sameEvent(a, b types.HistoryEvent) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.Action == b.Action &&
		a.Node == b.Node &&
		a.From == b.From &&
		a.To == b.To
}

func (s *BoltStore) DeleteArtifact(id uint64) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		if b.Get(itob(id)) == nil {
			return fmt.Errorf("artifact %d: %w", id, ErrNotFound)
		}
		return b.Delete(itob(id))
	})
}

// Node state operations

func (s *BoltStore) GetNodeStates() (map[string]types.DrainState, error) {
	states := make(map[string]types.DrainState)
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodeStates).ForEach(func(k, v []byte) error {
			var state types.DrainState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			states[string(k)] = state
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// SetNodeState overwrites the drain state of node and stamps UpdatedAt
func (s *BoltStore) SetNodeState(node string, drained bool, reason string) (types.DrainState, error) {
	state := types.DrainState{
		Drained:   drained,
		Reason:    reason,
		UpdatedAt: s.now().UTC(),
	}
	err := s.update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNodeStates).Put([]byte(node), data)
	})
	if err != nil {
		return types.DrainState{}, err
	}
	return state, nil
}

// Operations log

func (s *BoltStore) RecordAudit(entry *types.AuditEntry) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperations)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id
		if entry.Timestamp.IsZero() {
			entry.Timestamp = s.now().UTC()
		}
		if entry.Actor == "" {
			entry.Actor = "system"
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

func (s *BoltStore) ListAudit(limit int) ([]*types.AuditEntry, error) {
	var entries []*types.AuditEntry
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketOperations).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry types.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	return entries, err
}

// Task operations

// UpsertTask creates or replaces a task. CreatedAt is kept from the stored
// copy and UpdatedAt is always refreshed.
func (s *BoltStore) UpsertTask(task *types.Task) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		now := s.now().UTC()

		task.CreatedAt = now
		if data := b.Get([]byte(task.ID)); data != nil {
			var existing types.Task
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			task.CreatedAt = existing.CreatedAt
		}
		task.UpdatedAt = now

		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(task.ID), data)
	})
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.view(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks(limit int) ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (s *BoltStore) DeleteTask(id string) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTasks).Delete([]byte(id))
	})
}
