package manager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cuemby/zkbalancer/pkg/artifact"
	"github.com/cuemby/zkbalancer/pkg/cluster"
	"github.com/cuemby/zkbalancer/pkg/config"
	"github.com/cuemby/zkbalancer/pkg/events"
	"github.com/cuemby/zkbalancer/pkg/health"
	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/metrics"
	"github.com/cuemby/zkbalancer/pkg/migrate"
	"github.com/cuemby/zkbalancer/pkg/mirror"
	"github.com/cuemby/zkbalancer/pkg/nodestate"
	"github.com/cuemby/zkbalancer/pkg/scheduler"
	"github.com/cuemby/zkbalancer/pkg/storage"
	"github.com/cuemby/zkbalancer/pkg/tasks"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/cuemby/zkbalancer/pkg/volume"
	"github.com/rs/zerolog"
)

// Manager owns every long-lived handle of a zkbalancer process. Nothing is
// held in package globals; commands get what they need from the manager.
type Manager struct {
	config *config.Config
	nodes  []string
	logger zerolog.Logger

	store      *storage.BoltStore
	driver     *volume.LocalDriver
	broker     *events.Broker
	auditor    *events.Auditor
	replicator *mirror.Replicator
	aggregator *cluster.Aggregator
	nodeStates *nodestate.Store
	scheduler  *scheduler.Scheduler
	artifacts  *artifact.Service
	tasks      *tasks.Service
	collector  *metrics.Collector

	forwarder  *events.Forwarder
	httpServer *http.Server

	mu      sync.Mutex
	started bool
	closed  bool
}

// Overview is a combined snapshot of the cluster and the records
type Overview struct {
	Cluster  types.ClusterStatus `json:"cluster" yaml:"cluster"`
	Files    []*types.Artifact   `json:"files" yaml:"files"`
	Tasks    []*types.Task       `json:"tasks" yaml:"tasks"`
	Mirrored []mirror.Entry      `json:"mirrored" yaml:"mirrored"`
}

// NewManager opens the record store and builds every component. Background
// loops and outbound sinks are only started by Start.
func NewManager(cfg *config.Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	driver, err := volume.NewLocalDriver(cfg.Storage.FilesDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	prober, err := health.NewProber(health.Config{
		Timeout:    cfg.Probe.Timeout,
		Retries:    cfg.Probe.Retries,
		RetryDelay: cfg.Probe.RetryDelay,
		Command:    cfg.Probe.Command,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}

	backend, err := mirror.New(cfg.Mirror, cfg.MirrorEndpoints())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create metadata mirror: %w", err)
	}

	nodes := types.NodeNames(cfg.Nodes)
	broker := events.NewBroker(cfg.Events.Buffer)
	auditor := events.NewAuditor(store, broker)
	replicator := mirror.NewReplicator(backend)
	nodeStates := nodestate.NewStore(store, auditor, nodes)
	aggregator := cluster.NewAggregator(prober, cfg.Nodes)
	artifacts := artifact.NewService(nodes, store, nodeStates, driver, replicator, auditor)
	taskService := tasks.NewService(store, cfg.Tasks.HistoryLimit)

	sched := scheduler.NewScheduler(scheduler.Config{
		Nodes:     nodes,
		Threshold: cfg.Scheduler.Threshold,
		Interval:  cfg.Scheduler.Interval,
	}, store, nodeStates, migrate.NewExecutor(driver), replicator, auditor)
	artifacts.SetMigrationLock(sched.MigrationLock())

	collector := metrics.NewCollector(metrics.Sources{
		Cluster: aggregator,
		Drains:  nodeStates,
		Files:   artifacts,
		Tasks:   taskService,
		Events:  broker,
	}, cfg.Metrics.CollectInterval)

	// Keep the exported gauges current after every migration
	sched.OnMigrate(func(ctx context.Context) { collector.Refresh(ctx) })

	metrics.UpdateComponent("store", true, "")

	return &Manager{
		config:     cfg,
		nodes:      nodes,
		logger:     log.WithComponent("manager"),
		store:      store,
		driver:     driver,
		broker:     broker,
		auditor:    auditor,
		replicator: replicator,
		aggregator: aggregator,
		nodeStates: nodeStates,
		scheduler:  sched,
		artifacts:  artifacts,
		tasks:      taskService,
		collector:  collector,
	}, nil
}

// Start connects the event sink and starts the broker, collector, scheduler
// loop and observability endpoint
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("manager is shut down")
	}
	if m.started {
		return nil
	}

	sink, err := events.NewSink(m.config.Events)
	if err != nil {
		m.logger.Warn().Err(err).Str("sink", m.config.Events.Sink).Msg("Event sink unavailable, forwarding disabled")
		sink = events.NoopSink{}
	}

	m.broker.Start()
	m.forwarder = events.NewForwarder(m.broker, sink, 5*time.Second)
	m.forwarder.Start()

	m.collector.Start()

	if m.config.Scheduler.Enabled {
		m.scheduler.Start()
		metrics.UpdateComponent("scheduler", true, "")
	} else {
		metrics.UpdateComponent("scheduler", true, "disabled")
	}

	if m.config.Metrics.Addr != "" {
		m.httpServer = &http.Server{
			Addr:              m.config.Metrics.Addr,
			Handler:           metrics.Mux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error().Err(err).Str("addr", m.config.Metrics.Addr).Msg("Metrics server failed")
			}
		}()
	}

	m.started = true
	m.logger.Info().
		Strs("nodes", m.nodes).
		Bool("scheduler", m.config.Scheduler.Enabled).
		Str("mirror", m.config.Mirror.Type).
		Str("sink", m.config.Events.Sink).
		Msg("Manager started")
	return nil
}

// Shutdown stops background work in reverse start order and closes every
// handle. It is safe to call without Start.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.httpServer != nil {
		if err := m.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	m.scheduler.Stop()
	m.collector.Stop()

	if m.forwarder != nil {
		m.forwarder.Stop()
	}
	m.broker.Stop()

	if err := m.replicator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("mirror: %w", err))
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	metrics.UpdateComponent("store", false, "closed")

	m.started = false
	return errors.Join(errs...)
}

// Overview refreshes metrics and returns the cluster view together with the
// stored and mirrored records. A mirror failure yields an empty mirror list.
func (m *Manager) Overview(ctx context.Context) (*Overview, error) {
	status := m.collector.Refresh(ctx)

	files, err := m.artifacts.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	taskList, err := m.tasks.List(m.config.Tasks.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	mirrored, err := m.replicator.List(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Unable to read mirrored artifacts")
		mirrored = []mirror.Entry{}
	}

	return &Overview{Cluster: status, Files: files, Tasks: taskList, Mirrored: mirrored}, nil
}

// Config returns the configuration the manager was built with
func (m *Manager) Config() *config.Config { return m.config }

// Nodes returns the configured node names in order
func (m *Manager) Nodes() []string { return append([]string(nil), m.nodes...) }

// Store returns the record store
func (m *Manager) Store() storage.Store { return m.store }

// Collector returns the metrics collector
func (m *Manager) Collector() *metrics.Collector { return m.collector }

// Scheduler returns the rebalance scheduler
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.scheduler }

// Artifacts returns the artifact service
func (m *Manager) Artifacts() *artifact.Service { return m.artifacts }

// Tasks returns the task service
func (m *Manager) Tasks() *tasks.Service { return m.tasks }

// NodeStates returns the drain state store
func (m *Manager) NodeStates() *nodestate.Store { return m.nodeStates }

// Mirror returns the metadata replicator
func (m *Manager) Mirror() *mirror.Replicator { return m.replicator }

// Events returns the event broker
func (m *Manager) Events() *events.Broker { return m.broker }

// Cluster returns the status aggregator
func (m *Manager) Cluster() *cluster.Aggregator { return m.aggregator }
