package tasks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidTransition is returned when a task cannot move to the requested
// status from its current one
var ErrInvalidTransition = errors.New("invalid task transition")

// Store is the task part of the record store
type Store interface {
	UpsertTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	ListTasks(limit int) ([]*types.Task, error)
	DeleteTask(id string) error
}

var transitions = map[types.TaskStatus][]types.TaskStatus{
	types.TaskStatusQueued:  {types.TaskStatusRunning, types.TaskStatusCancelled},
	types.TaskStatusRunning: {types.TaskStatusSucceeded, types.TaskStatusFailed, types.TaskStatusCancelled},
}

// CanTransition reports whether a task may move from one status to another.
// Succeeded, failed and cancelled are terminal.
func CanTransition(from, to types.TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status types.TaskStatus) bool {
	return len(transitions[status]) == 0
}

// Service manages simulated workload tasks
type Service struct {
	store  Store
	limit  int
	logger zerolog.Logger
	newID  func() string

	// mu makes read-check-write transitions atomic
	mu sync.Mutex
}

// NewService creates a task service. limit bounds the retained history; zero
// keeps everything.
func NewService(store Store, limit int) *Service {
	return &Service{
		store:  store,
		limit:  limit,
		logger: log.WithComponent("tasks"),
		newID:  uuid.NewString,
	}
}

// Create queues a new task
func (s *Service) Create(node string, payload map[string]any) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &types.Task{
		ID:      s.newID(),
		Node:    strings.TrimSpace(node),
		Status:  types.TaskStatusQueued,
		Payload: payload,
	}
	if err := s.store.UpsertTask(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logger := log.WithTaskID(task.ID)
	logger.Debug().Str("node", task.Node).Msg("Task queued")

	if s.limit > 0 {
		if _, err := s.prune(s.limit); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to prune task history")
		}
	}
	return task, nil
}

// Start moves a queued task to running
func (s *Service) Start(id string) (*types.Task, error) {
	return s.transition(id, types.TaskStatusRunning, "")
}

// Complete finishes a running task as succeeded or failed
func (s *Service) Complete(id string, success bool, details string) (*types.Task, error) {
	status := types.TaskStatusFailed
	if success {
		status = types.TaskStatusSucceeded
	}
	return s.transition(id, status, details)
}

// Cancel stops a queued or running task
func (s *Service) Cancel(id, reason string) (*types.Task, error) {
	return s.transition(id, types.TaskStatusCancelled, reason)
}

func (s *Service) transition(id string, to types.TaskStatus, details string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(task.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, to)
	}

	from := task.Status
	task.Status = to
	if details != "" {
		task.Details = details
	}
	if err := s.store.UpsertTask(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	logger := log.WithTaskID(id)
	logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Task transitioned")
	return task, nil
}

// Get returns one task
func (s *Service) Get(id string) (*types.Task, error) {
	return s.store.GetTask(id)
}

// List returns up to limit tasks, most recently updated first
func (s *Service) List(limit int) ([]*types.Task, error) {
	return s.store.ListTasks(limit)
}

// CountByStatus returns the number of tasks in every status
func (s *Service) CountByStatus() (map[types.TaskStatus]int, error) {
	tasks, err := s.store.ListTasks(0)
	if err != nil {
		return nil, err
	}
	counts := make(map[types.TaskStatus]int, len(types.TaskStatuses))
	for _, status := range types.TaskStatuses {
		counts[status] = 0
	}
	for _, task := range tasks {
		counts[task.Status]++
	}
	return counts, nil
}

// Prune deletes all but the keep most recently updated tasks and returns
// how many were removed
func (s *Service) Prune(keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(keep)
}

func (s *Service) prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	tasks, err := s.store.ListTasks(0)
	if err != nil {
		return 0, err
	}
	if len(tasks) <= keep {
		return 0, nil
	}

	removed := 0
	for _, task := range tasks[keep:] {
		if err := s.store.DeleteTask(task.ID); err != nil {
			return removed, fmt.Errorf("failed to delete task %s: %w", task.ID, err)
		}
		removed++
	}
	return removed, nil
}
