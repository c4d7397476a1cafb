package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/zkbalancer/pkg/events"
	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/rs/zerolog"
)

// Diagnostic keys read from each node's metrics table
var (
	latencyKeys     = []string{"zk_avg_latency", "zk_avg_latency_ms", "zk_avg_request_latency_ms"}
	connectionsKeys = []string{"zk_num_alive_connections"}
)

// ClusterSource produces an aggregated cluster view
type ClusterSource interface {
	Status(ctx context.Context) types.ClusterStatus
}

// DrainSource returns node drain states
type DrainSource interface {
	GetStates() (map[string]types.DrainState, error)
}

// FileCounter returns artifact counts per node
type FileCounter interface {
	Counts() (map[string]int, error)
}

// TaskCounter returns task counts per status
type TaskCounter interface {
	CountByStatus() (map[types.TaskStatus]int, error)
}

// Publisher receives node transition events
type Publisher interface {
	Publish(event *events.Event)
}

// Sources wires the collector to the rest of the process. Only Cluster is
// required.
type Sources struct {
	Cluster ClusterSource
	Drains  DrainSource
	Files   FileCounter
	Tasks   TaskCounter
	Events  Publisher
}

// Collector refreshes the exported gauges from the live cluster and the
// record store
type Collector struct {
	sources  Sources
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	lastUp map[string]bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  bool
	stopped  bool
}

// NewCollector creates a new metrics collector
func NewCollector(sources Sources, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		sources:  sources,
		interval: interval,
		logger:   log.WithComponent("collector"),
		lastUp:   make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)
		defer ticker.Stop()

		// Collect immediately on start
		c.Refresh(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Refresh(context.Background())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector and waits for a running refresh to finish
func (c *Collector) Stop() {
	c.mu.Lock()
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	if started {
		<-c.doneCh
	}
}

// Refresh aggregates the cluster, annotates every node with its drain state
// and recomputes all gauges. Per-node and per-status gauges are reset first
// so nodes that disappeared stop being reported.
func (c *Collector) Refresh(ctx context.Context) types.ClusterStatus {
	status := c.sources.Cluster.Status(ctx)

	if c.sources.Drains != nil {
		states, err := c.sources.Drains.GetStates()
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to read drain states")
		}
		annotate(&status, states)
	}

	c.collectNodeMetrics(status)
	c.collectFileMetrics()
	c.collectTaskMetrics()

	if status.Leader != "" {
		UpdateComponent("cluster", true, "leader "+status.Leader)
	} else {
		UpdateComponent("cluster", false, "no leader detected")
	}
	return status
}

func annotate(status *types.ClusterStatus, states map[string]types.DrainState) {
	for i := range status.Nodes {
		node := &status.Nodes[i]
		state, ok := states[node.Node]
		if !ok {
			continue
		}
		node.Drained = state.Drained
		node.DrainReason = state.Reason
		if !state.UpdatedAt.IsZero() {
			updated := state.UpdatedAt
			node.DrainUpdatedAt = &updated
		}
	}
}

func (c *Collector) collectNodeMetrics(status types.ClusterStatus) {
	NodeUp.Reset()
	NodeAvgLatency.Reset()
	NodeConnections.Reset()
	NodeDrained.Reset()

	for _, node := range status.Nodes {
		up := node.State != types.NodeStateDown
		NodeUp.WithLabelValues(node.Node).Set(boolValue(up))
		NodeDrained.WithLabelValues(node.Node).Set(boolValue(node.Drained))
		if !up {
			ProbeFailures.WithLabelValues(node.Node).Inc()
		}

		if v, ok := node.Metrics.FirstNumber(latencyKeys...); ok {
			NodeAvgLatency.WithLabelValues(node.Node).Set(v)
		}
		if v, ok := node.Metrics.FirstNumber(connectionsKeys...); ok {
			NodeConnections.WithLabelValues(node.Node).Set(v)
		}

		c.observeTransition(node, up)
	}
}

// observeTransition publishes node.down / node.up when a node's reachability
// differs from the previous refresh. The first observation never publishes.
func (c *Collector) observeTransition(node types.NodeStatus, up bool) {
	c.mu.Lock()
	prev, seen := c.lastUp[node.Node]
	c.lastUp[node.Node] = up
	c.mu.Unlock()

	if !seen || prev == up {
		return
	}

	logger := log.WithNode(node.Node)
	event := &events.Event{
		Metadata: map[string]string{"node": node.Node, "endpoint": node.Endpoint},
	}
	if up {
		event.Type = events.EventNodeUp
		event.Message = fmt.Sprintf("Node %s is reachable again", node.Node)
		logger.Info().Str("state", string(node.State)).Msg("Node recovered")
	} else {
		event.Type = events.EventNodeDown
		event.Message = fmt.Sprintf("Node %s is unreachable", node.Node)
		event.Metadata["error"] = node.Error
		logger.Warn().Str("error", node.Error).Msg("Node went down")
	}

	if c.sources.Events != nil {
		c.sources.Events.Publish(event)
	}
}

func (c *Collector) collectFileMetrics() {
	if c.sources.Files == nil {
		return
	}
	counts, err := c.sources.Files.Counts()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to count artifacts")
		return
	}

	FilesPerNode.Reset()
	for node, n := range counts {
		FilesPerNode.WithLabelValues(node).Set(float64(n))
	}
}

func (c *Collector) collectTaskMetrics() {
	if c.sources.Tasks == nil {
		return
	}
	counts, err := c.sources.Tasks.CountByStatus()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to count tasks")
		return
	}

	TasksTotal.Reset()
	for status, n := range counts {
		TasksTotal.WithLabelValues(string(status)).Set(float64(n))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
