package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Node metrics
	NodeUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_node_up",
			Help: "Whether the node answered its last probe (1 = up, 0 = down)",
		},
		[]string{"node"},
	)

	NodeAvgLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_avg_latency_ms",
			Help: "Average request latency reported by the node in milliseconds",
		},
		[]string{"node"},
	)

	NodeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_connections",
			Help: "Alive client connections reported by the node",
		},
		[]string{"node"},
	)

	NodeDrained = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_node_drained",
			Help: "Whether the node is drained (1 = drained, 0 = in service)",
		},
		[]string{"node"},
	)

	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkbalancer_probe_failures_total",
			Help: "Total number of probe passes in which the node was unreachable",
		},
		[]string{"node"},
	)

	// Placement metrics
	FilesPerNode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_files_per_node",
			Help: "Number of artifacts stored on each node",
		},
		[]string{"node"},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zkbalancer_tasks_total",
			Help: "Number of simulated tasks by status",
		},
		[]string{"status"},
	)

	// Scheduler metrics
	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkbalancer_migrations_total",
			Help: "Total number of artifact migrations by outcome",
		},
		[]string{"status"},
	)

	PlanDelta = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zkbalancer_plan_delta",
			Help: "Count delta between source and target node in the latest plan",
		},
	)

	SchedulerIterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zkbalancer_scheduler_iteration_seconds",
			Help:    "Time taken by one plan-and-execute iteration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodeUp)
	prometheus.MustRegister(NodeAvgLatency)
	prometheus.MustRegister(NodeConnections)
	prometheus.MustRegister(NodeDrained)
	prometheus.MustRegister(ProbeFailures)
	prometheus.MustRegister(FilesPerNode)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(MigrationsTotal)
	prometheus.MustRegister(PlanDelta)
	prometheus.MustRegister(SchedulerIterationDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
