package scheduler

import (
	"fmt"
	"sort"

	"github.com/cuemby/zkbalancer/pkg/types"
)

// PlanInput is everything a placement decision depends on
type PlanInput struct {
	// Nodes is the configured node set, in configured order
	Nodes []string
	// Artifacts must be in listing order (see storage.SortArtifacts); the
	// candidate is the first artifact on the source node in this order
	Artifacts []*types.Artifact
	States    map[string]types.DrainState
	Threshold int
}

type nodeCount struct {
	node  string
	count int
}

// BuildPlan computes a rebalance plan. It never fails and has no side
// effects: identical inputs always produce an identical plan. The returned
// artifact is the selected candidate (nil when none was selected); it is
// only meant to be migrated when plan.ShouldMigrate is true.
//
// The target is the least-loaded non-drained node (any node when all are
// drained). The source is the busiest drained node still holding files, and
// the busiest node overall when no drained node holds any.
//
// Ties between nodes resolve to the earliest node in iteration order: the
// configured nodes first, then nodes that appear only in artifact records,
// by first appearance.
func BuildPlan(in PlanInput) (types.Plan, *types.Artifact) {
	order, counts := countByNode(in.Nodes, in.Artifacts)

	drained := make(map[string]bool)
	drainedNodes := []string{}
	for node, state := range in.States {
		if state.Drained {
			drained[node] = true
			drainedNodes = append(drainedNodes, node)
		}
	}
	sort.Strings(drainedNodes)

	nodeStates := make(map[string]types.DrainState, len(order))
	for _, node := range order {
		nodeStates[node] = in.States[node]
	}

	plan := types.Plan{
		Nodes:        order,
		Counts:       counts,
		TotalFiles:   len(in.Artifacts),
		DrainedNodes: drainedNodes,
		NodeStates:   nodeStates,
		Threshold:    in.Threshold,
		Reason:       types.ReasonPending,
	}

	if len(in.Artifacts) == 0 {
		plan.Reason = types.ReasonNoFiles
		plan.Message = "No files in the cluster; the scheduler stays idle."
		return plan, nil
	}

	if len(order) == 0 {
		plan.Reason = types.ReasonNoNodes
		plan.Message = "No nodes available; cannot compute a plan."
		return plan, nil
	}

	var drainedWithFiles, all, ready []nodeCount
	for _, node := range order {
		nc := nodeCount{node: node, count: counts[node]}
		all = append(all, nc)
		if drained[node] {
			if nc.count > 0 {
				drainedWithFiles = append(drainedWithFiles, nc)
			}
		} else {
			ready = append(ready, nc)
		}
	}

	target := minCount(all)
	if len(ready) > 0 {
		target = minCount(ready)
	}
	source := maxCount(all)
	if len(drainedWithFiles) > 0 {
		// A drained node still holding files is always the source, even
		// when moving off it does not clear the threshold
		source = maxCount(drainedWithFiles)
	}

	plan.SourceNode = source.node
	plan.TargetNode = target.node
	plan.Delta = source.count - target.count

	var candidate *types.Artifact
	for _, a := range in.Artifacts {
		if a.Node == source.node {
			candidate = a
			break
		}
	}
	if candidate == nil {
		plan.Reason = types.ReasonNoCandidate
		plan.Message = "No migratable file found on the source node."
		return plan, nil
	}
	plan.Candidate = summarize(candidate)

	switch {
	case source.node == target.node:
		plan.Reason = types.ReasonSingleTarget
		plan.Message = "Only one usable node; nothing to migrate."
	case len(ready) == 0 && len(drainedNodes) > 0:
		plan.Reason = types.ReasonNoTarget
		plan.Message = "Every node is drained; no migration target available."
	case plan.Delta < in.Threshold:
		plan.Reason = types.ReasonBelowThreshold
		plan.Message = fmt.Sprintf("Max delta %d is below threshold %d; not migrating.", plan.Delta, in.Threshold)
	default:
		plan.ShouldMigrate = true
		plan.Reason = types.ReasonReady
		plan.Message = fmt.Sprintf("Node %s holds %d more files than %s; migrating %s.",
			source.node, plan.Delta, target.node, candidate.Filename)
	}
	return plan, candidate
}

// countByNode counts artifacts per node. Every configured node appears, even
// with zero artifacts.
func countByNode(nodes []string, artifacts []*types.Artifact) ([]string, map[string]int) {
	counts := make(map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if _, ok := counts[node]; !ok {
			counts[node] = 0
			order = append(order, node)
		}
	}
	for _, a := range artifacts {
		if _, ok := counts[a.Node]; !ok {
			order = append(order, a.Node)
		}
		counts[a.Node]++
	}
	return order, counts
}

func maxCount(ncs []nodeCount) nodeCount {
	best := ncs[0]
	for _, nc := range ncs[1:] {
		if nc.count > best.count {
			best = nc
		}
	}
	return best
}

func minCount(ncs []nodeCount) nodeCount {
	best := ncs[0]
	for _, nc := range ncs[1:] {
		if nc.count < best.count {
			best = nc
		}
	}
	return best
}

func summarize(a *types.Artifact) *types.CandidateSummary {
	summary := &types.CandidateSummary{
		ID:            a.ID,
		UUID:          a.UUID,
		Filename:      a.Filename,
		Node:          a.Node,
		SizeBytes:     a.SizeBytes,
		CreatedAt:     a.CreatedAt,
		HistoryLength: len(a.History),
	}
	if last := a.LastEvent(); last != nil {
		summary.LastAction = last.Action
	}
	return summary
}
