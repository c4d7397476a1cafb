package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/metrics"
	"github.com/cuemby/zkbalancer/pkg/migrate"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/rs/zerolog"
)

// ArtifactStore is the part of the record store the scheduler uses
type ArtifactStore interface {
	ListArtifacts() ([]*types.Artifact, error)
	UpdateArtifact(id uint64, update types.ArtifactUpdate) (*types.Artifact, error)
}

// StateSource returns the drain state of every node
type StateSource interface {
	GetStates() (map[string]types.DrainState, error)
}

// Migrator moves an artifact's file to another node
type Migrator interface {
	Migrate(ctx context.Context, artifact *types.Artifact, target string) (migrate.Result, error)
}

// MetadataPublisher propagates artifact metadata best-effort
type MetadataPublisher interface {
	PublishArtifact(ctx context.Context, artifact *types.Artifact)
}

// Auditor records operations
type Auditor interface {
	Record(entry *types.AuditEntry) error
}

// Config holds the scheduler settings
type Config struct {
	Nodes     []string
	Threshold int
	Interval  time.Duration
}

// RunResult reports a manual scheduler run
type RunResult struct {
	Executed bool       `json:"executed" yaml:"executed"`
	Before   types.Plan `json:"before" yaml:"before"`
	After    types.Plan `json:"after" yaml:"after"`
}

// Scheduler drives rebalancing: every interval it builds a plan and, when
// the plan recommends it, migrates exactly one artifact.
type Scheduler struct {
	config   Config
	store    ArtifactStore
	states   StateSource
	migrator Migrator
	mirror   MetadataPublisher
	auditor  Auditor
	logger   zerolog.Logger
	now      func() time.Time

	// mu serialises plan-then-execute so at most one migration is in flight
	mu           sync.Mutex
	afterMigrate func(ctx context.Context)

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	lifeMu  sync.Mutex
}

// NewScheduler creates a new scheduler. mirror may be nil.
func NewScheduler(cfg Config, store ArtifactStore, states StateSource, migrator Migrator, mirror MetadataPublisher, auditor Auditor) *Scheduler {
	return &Scheduler{
		config:   cfg,
		store:    store,
		states:   states,
		migrator: migrator,
		mirror:   mirror,
		auditor:  auditor,
		logger:   log.WithComponent("scheduler"),
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// OnMigrate registers a hook run after every successful migration, outside
// the migration lock
func (s *Scheduler) OnMigrate(fn func(ctx context.Context)) {
	s.afterMigrate = fn
}

// Start begins the scheduler loop
func (s *Scheduler) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Int("threshold", s.config.Threshold).
		Msg("Starting scheduler loop")
	go s.run()
}

// Stop signals the loop and waits for it to exit. A running iteration is
// allowed to finish; the loop exits at its next sleep.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	if s.stopped {
		s.lifeMu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.lifeMu.Unlock()

	if started {
		<-s.doneCh
	}
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer close(s.doneCh)

	ctx := context.Background()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.iterate(ctx)

		timer := time.NewTimer(s.config.Interval)
		select {
		case <-timer.C:
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// iterate runs one plan-and-execute pass. Errors and panics stop here.
func (s *Scheduler) iterate(ctx context.Context) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.SchedulerIterationDuration)
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Msg("Scheduler iteration panicked")
		}
	}()

	if _, _, err := s.rebalance(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduler iteration failed")
	}
}

// Diagnostics computes the current plan without executing it and without
// taking the migration lock
func (s *Scheduler) Diagnostics(ctx context.Context) (types.Plan, error) {
	plan, _, err := s.plan()
	return plan, err
}

// RunOnce performs one iteration immediately and reports the plan before
// and after. Errors are returned to the caller instead of being logged.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	executed, before, err := s.rebalance(ctx)
	if err != nil {
		return RunResult{Executed: executed, Before: before}, err
	}

	after, _, err := s.plan()
	if err != nil {
		return RunResult{Executed: executed, Before: before}, err
	}
	return RunResult{Executed: executed, Before: before, After: after}, nil
}

func (s *Scheduler) plan() (types.Plan, *types.Artifact, error) {
	artifacts, err := s.store.ListArtifacts()
	if err != nil {
		return types.Plan{}, nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	states, err := s.states.GetStates()
	if err != nil {
		return types.Plan{}, nil, fmt.Errorf("failed to read node states: %w", err)
	}

	plan, candidate := BuildPlan(PlanInput{
		Nodes:     s.config.Nodes,
		Artifacts: artifacts,
		States:    states,
		Threshold: s.config.Threshold,
	})
	metrics.PlanDelta.Set(float64(plan.Delta))
	return plan, candidate, nil
}

// MigrationLock returns the lock held for the whole of plan-then-execute.
// Deletes take it so they never race a move of the same file.
func (s *Scheduler) MigrationLock() sync.Locker {
	return &s.mu
}

// rebalance plans and, when the plan says so, migrates one artifact
func (s *Scheduler) rebalance(ctx context.Context) (bool, types.Plan, error) {
	executed, plan, err := s.planAndExecute(ctx)
	if executed && s.afterMigrate != nil {
		s.afterMigrate(ctx)
	}
	return executed, plan, err
}

func (s *Scheduler) planAndExecute(ctx context.Context) (bool, types.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, candidate, err := s.plan()
	if err != nil {
		return false, plan, err
	}
	if !plan.ShouldMigrate || candidate == nil {
		return false, plan, nil
	}
	if err := s.execute(ctx, plan, candidate); err != nil {
		return false, plan, err
	}
	return true, plan, nil
}

// execute moves the candidate and records the outcome. Any failure produces
// an error audit entry.
func (s *Scheduler) execute(ctx context.Context, plan types.Plan, candidate *types.Artifact) error {
	source, target := plan.SourceNode, plan.TargetNode
	logger := s.logger.With().
		Uint64("artifact_id", candidate.ID).
		Str("source", source).
		Str("target", target).
		Logger()

	logger.Info().
		Str("filename", candidate.Filename).
		Int("delta", plan.Delta).
		Msg("Migrating artifact")

	before := map[string]any{"counts": plan.Counts, "delta": plan.Delta}

	result, err := s.migrator.Migrate(ctx, candidate, target)
	if err != nil {
		s.recordFailure(logger, candidate, source, target, before, err)
		return err
	}

	history := make([]types.HistoryEvent, 0, len(candidate.History)+1)
	history = append(history, candidate.History...)
	history = append(history, types.HistoryEvent{
		Timestamp: s.now().UTC(),
		Action:    types.ActionAutoMigrate,
		From:      source,
		To:        target,
	})

	updated, err := s.store.UpdateArtifact(candidate.ID, types.ArtifactUpdate{
		Node:    &result.Node,
		Path:    &result.Path,
		History: history,
	})
	if err != nil {
		err = fmt.Errorf("file moved to %s but record update failed: %w", result.Path, err)
		s.recordFailure(logger, candidate, source, target, before, err)
		return err
	}

	if s.mirror != nil {
		s.mirror.PublishArtifact(ctx, updated)
	}

	metrics.MigrationsTotal.WithLabelValues(types.AuditStatusSuccess).Inc()
	s.audit(logger, &types.AuditEntry{
		Actor:         "scheduler",
		Action:        types.ActionAutoMigrate,
		Node:          result.Node,
		Status:        types.AuditStatusSuccess,
		Details:       fmt.Sprintf("Auto-migrated file %s from %s to %s", candidate.Filename, source, target),
		BeforeMetrics: before,
		AfterMetrics:  map[string]any{"counts": movedCounts(plan.Counts, source, target)},
	})

	logger.Info().Str("path", result.Path).Msg("Artifact migrated")
	return nil
}

func (s *Scheduler) recordFailure(logger zerolog.Logger, candidate *types.Artifact, source, target string, before map[string]any, err error) {
	metrics.MigrationsTotal.WithLabelValues(types.AuditStatusError).Inc()
	logger.Error().Err(err).Msg("Artifact migration failed")
	s.audit(logger, &types.AuditEntry{
		Actor:         "scheduler",
		Action:        types.ActionAutoMigrate,
		Node:          source,
		Status:        types.AuditStatusError,
		Details:       fmt.Sprintf("Failed to migrate file %s from %s to %s: %v", candidate.Filename, source, target, err),
		BeforeMetrics: before,
	})
}

func (s *Scheduler) audit(logger zerolog.Logger, entry *types.AuditEntry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("Failed to record audit entry")
	}
}

func movedCounts(counts map[string]int, source, target string) map[string]int {
	out := make(map[string]int, len(counts))
	for node, n := range counts {
		out[node] = n
	}
	out[source]--
	out[target]++
	return out
}
