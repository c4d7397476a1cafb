package types

import "time"

// PlanReason is the machine-readable outcome of a placement decision
type PlanReason string

const (
	ReasonPending        PlanReason = "pending"
	ReasonNoFiles        PlanReason = "no_files"
	ReasonNoNodes        PlanReason = "no_nodes"
	ReasonNoCandidate    PlanReason = "no_candidate"
	ReasonSingleTarget   PlanReason = "single_target"
	ReasonNoTarget       PlanReason = "no_target"
	ReasonBelowThreshold PlanReason = "below_threshold"
	ReasonReady          PlanReason = "ready"
)

// CandidateSummary describes the artifact selected as the next migration unit
type CandidateSummary struct {
	ID            uint64    `json:"id" yaml:"id"`
	UUID          string    `json:"uuid" yaml:"uuid"`
	Filename      string    `json:"filename" yaml:"filename"`
	Node          string    `json:"node" yaml:"node"`
	SizeBytes     int64     `json:"size_bytes" yaml:"size_bytes"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	LastAction    string    `json:"last_action,omitempty" yaml:"last_action,omitempty"`
	HistoryLength int       `json:"history_length" yaml:"history_length"`
}

// Plan is a derived, non-persisted rebalance decision
type Plan struct {
	Nodes         []string              `json:"nodes" yaml:"nodes"`
	Counts        map[string]int        `json:"counts" yaml:"counts"`
	TotalFiles    int                   `json:"totalFiles" yaml:"totalFiles"`
	DrainedNodes  []string              `json:"drainedNodes" yaml:"drainedNodes"`
	NodeStates    map[string]DrainState `json:"nodeStates" yaml:"nodeStates"`
	Threshold     int                   `json:"threshold" yaml:"threshold"`
	Delta         int                   `json:"delta" yaml:"delta"`
	SourceNode    string                `json:"sourceNode,omitempty" yaml:"sourceNode,omitempty"`
	TargetNode    string                `json:"targetNode,omitempty" yaml:"targetNode,omitempty"`
	ShouldMigrate bool                  `json:"shouldMigrate" yaml:"shouldMigrate"`
	Reason        PlanReason            `json:"reason" yaml:"reason"`
	Message       string                `json:"message" yaml:"message"`
	Candidate     *CandidateSummary     `json:"candidate" yaml:"candidate"`
}
