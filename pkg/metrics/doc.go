/*
Package metrics exposes zkbalancer's Prometheus metrics and health endpoints.

All metrics are registered on the default registry at init and served by
Handler. Mux adds the health endpoints:

	/metrics  Prometheus text exposition
	/health   healthy | degraded (200) or unhealthy (503)
	/ready    ready once every critical component reports healthy
	/live     always 200 while the process runs

# Metrics

Node gauges, labelled by node:

	zkbalancer_node_up              1 when the last probe answered
	zkbalancer_avg_latency_ms       zk_avg_latency reported by the node
	zkbalancer_connections          zk_num_alive_connections
	zkbalancer_node_drained         1 while the node is drained
	zkbalancer_files_per_node       artifacts stored on the node
	zkbalancer_probe_failures_total refreshes in which the node was down

Scheduler:

	zkbalancer_migrations_total{status}      migrations by outcome
	zkbalancer_plan_delta                    delta of the latest plan
	zkbalancer_scheduler_iteration_seconds   plan-and-execute latency

Tasks:

	zkbalancer_tasks_total{status}

# Collector

Collector.Refresh aggregates the cluster, annotates drain state and rebuilds
the labelled gauges from scratch, so a node removed from configuration stops
being exported. Reachability changes between refreshes are published as
node.down and node.up events.

	c := metrics.NewCollector(metrics.Sources{
		Cluster: aggregator,
		Drains:  nodeStates,
		Files:   artifacts,
		Tasks:   tasks,
		Events:  broker,
	}, 15*time.Second)
	c.Start()
	defer c.Stop()

Use Timer to observe durations:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerIterationDuration)
*/
package metrics
