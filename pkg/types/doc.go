/*
Package types defines the core data structures shared by every zkbalancer package.

The types here model three things: the monitored coordination-service cluster
(nodes, their reported state and diagnostic metrics), the stored artifacts that
are placed across node storage areas, and the derived rebalance plan that the
scheduler produces from them.

# Core Types

Cluster view:
  - NodeState: leader, follower, standalone, down, unknown
  - NodeStatus: one node's entry in an aggregated view, including drain flags
  - ClusterStatus: every configured node plus the detected leader
  - Metrics / MetricValue: parsed key/value diagnostic table

Administrative state:
  - DrainState: persisted drain flag, reason and last update time

Artifacts:
  - Artifact: file record (uuid, name, size, owning node, storage path)
  - HistoryEvent: one append-only history entry
  - ArtifactUpdate: partial update applied through the record store

Scheduling:
  - Plan: counts, source/target selection, delta and decision reason
  - CandidateSummary: the artifact selected for the next migration
  - PlanReason: no_files, no_nodes, no_candidate, single_target, no_target,
    below_threshold, ready

Bookkeeping:
  - AuditEntry: one row of the operations log
  - Task / TaskStatus: simulated workload entity and its state machine states

# Metric Values

Diagnostic responses are free-form text. Values are kept as a tagged union so
that consumers never have to type-switch on interface{}:

	v := metrics["zk_avg_latency"]
	if ms, ok := v.Number(); ok {
		latency.Set(ms)
	}

MetricValue marshals to a JSON number when numeric and to a string otherwise.

# Node Names

Nodes are configured as host:port endpoints. Everything that is keyed per
node (drain state, artifact ownership, storage directories, metric labels)
uses the short name derived by NodeName, which is the host part.
*/
package types
