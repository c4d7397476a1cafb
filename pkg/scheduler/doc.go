/*
Package scheduler decides where artifacts should live and moves them there,
one at a time.

# Placement policy

BuildPlan is a pure function over the configured node list, the artifact
records in listing order, the per-node drain states and the imbalance
threshold. It counts artifacts per node, picks the least-loaded non-drained
node as target and the busiest node as source, and recommends moving the
newest artifact on the source when the count difference reaches the
threshold:

	counts  A=10 B=2 C=3   threshold=5
	source  A (10)
	target  B (2)
	delta   8  >= 5  -> migrate newest file on A to B

A drained node that still holds files is evacuated ahead of the busiest
ready node whenever that move clears the threshold. Drained nodes are never
targets unless every node is drained, in which case the plan reports
no_target and nothing moves.

Ties always go to the node that comes first in configured order, so the
same inputs produce the same plan.

# Driver

Scheduler runs BuildPlan on a fixed interval and executes at most one
migration per iteration:

	┌──────────────┐     ┌──────────────┐     ┌───────────────┐
	│ list records │────▶│  BuildPlan   │────▶│ move file     │
	│ drain states │     │              │     │ append history│
	└──────────────┘     └──────────────┘     │ update record │
	                                          │ mirror + audit│
	                                          └───────────────┘

Plan-then-execute is serialised by a mutex shared with RunOnce, so a manual
run and the background loop never migrate concurrently. Diagnostics builds a
plan without taking the lock.

Failures inside an iteration are logged and audited with status error; the
loop keeps running. If the file move succeeds but the record update fails,
the file is left at its new location and the error audit names the path.

# Usage

	sched := scheduler.NewScheduler(scheduler.Config{
		Nodes:     []string{"zk1", "zk2", "zk3"},
		Threshold: 5,
		Interval:  30 * time.Second,
	}, store, nodeStates, migrate.NewExecutor(driver), replicator, auditor)

	sched.Start()
	defer sched.Stop()

	result, err := sched.RunOnce(ctx)
*/
package scheduler
