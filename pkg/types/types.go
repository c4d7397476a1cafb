package types

import (
	"net"
	"strings"
	"time"
)

// NodeState is the coordination-service role reported by a node (or derived
// by the aggregator when the node cannot be probed)
type NodeState string

const (
	NodeStateLeader     NodeState = "leader"
	NodeStateFollower   NodeState = "follower"
	NodeStateStandalone NodeState = "standalone"
	NodeStateDown       NodeState = "down"
	NodeStateUnknown    NodeState = "unknown"
)

// ParseNodeState maps a reported server state onto a NodeState.
// Matching is case-insensitive; anything unrecognised is unknown.
func ParseNodeState(s string) NodeState {
	switch NodeState(strings.ToLower(strings.TrimSpace(s))) {
	case NodeStateLeader:
		return NodeStateLeader
	case NodeStateFollower:
		return NodeStateFollower
	case NodeStateStandalone:
		return NodeStateStandalone
	case NodeStateDown:
		return NodeStateDown
	default:
		return NodeStateUnknown
	}
}

// NodeName derives the short node name (host part) from a host:port endpoint
func NodeName(endpoint string) string {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		if i := strings.LastIndex(endpoint, ":"); i >= 0 {
			return endpoint[:i]
		}
		return endpoint
	}
	return host
}

// NodeNames derives the short names of a list of endpoints, preserving order
func NodeNames(endpoints []string) []string {
	names := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		names = append(names, NodeName(ep))
	}
	return names
}

// NodeStatus is one node's entry in an aggregated cluster view
type NodeStatus struct {
	Node           string     `json:"node" yaml:"node"`
	Endpoint       string     `json:"endpoint" yaml:"endpoint"`
	State          NodeState  `json:"state" yaml:"state"`
	Metrics        Metrics    `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	Drained        bool       `json:"drained" yaml:"drained"`
	DrainReason    string     `json:"drain_reason,omitempty" yaml:"drain_reason,omitempty"`
	DrainUpdatedAt *time.Time `json:"drain_updated_at,omitempty" yaml:"drain_updated_at,omitempty"`
}

// ClusterStatus is the merged view produced by one aggregation pass
type ClusterStatus struct {
	Leader    string       `json:"leader,omitempty" yaml:"leader,omitempty"`
	Nodes     []NodeStatus `json:"nodes" yaml:"nodes"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
}

// DrainState is the persisted administrative state of one node
type DrainState struct {
	Drained   bool      `json:"drained" yaml:"drained"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// History actions recorded on artifacts
const (
	ActionUpload           = "upload"
	ActionBulkUploadAuto   = "bulk_upload_auto"
	ActionBulkUploadPinned = "bulk_upload_pinned"
	ActionAutoMigrate      = "auto_migrate"
)

// HistoryEvent is one entry in an artifact's append-only history
type HistoryEvent struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Action    string    `json:"action" yaml:"action"`
	Node      string    `json:"node,omitempty" yaml:"node,omitempty"`
	From      string    `json:"from,omitempty" yaml:"from,omitempty"`
	To        string    `json:"to,omitempty" yaml:"to,omitempty"`
}

// Artifact is a stored file record
type Artifact struct {
	ID        uint64         `json:"id" yaml:"id"`
	UUID      string         `json:"uuid" yaml:"uuid"`
	Filename  string         `json:"filename" yaml:"filename"`
	SizeBytes int64          `json:"size_bytes" yaml:"size_bytes"`
	Node      string         `json:"node" yaml:"node"`
	Path      string         `json:"path" yaml:"path"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	History   []HistoryEvent `json:"history" yaml:"history"`
}

// LastEvent returns the most recent history event, or nil
func (a *Artifact) LastEvent() *HistoryEvent {
	if len(a.History) == 0 {
		return nil
	}
	return &a.History[len(a.History)-1]
}

// ArtifactUpdate carries the mutable fields of an artifact record.
// Nil fields are left unchanged.
type ArtifactUpdate struct {
	Node    *string
	Path    *string
	History []HistoryEvent
}

// Audit statuses
const (
	AuditStatusSuccess = "success"
	AuditStatusError   = "error"
)

// AuditEntry is one row of the operations log
type AuditEntry struct {
	ID            uint64         `json:"id" yaml:"id"`
	Timestamp     time.Time      `json:"timestamp" yaml:"timestamp"`
	Actor         string         `json:"actor" yaml:"actor"`
	Action        string         `json:"action" yaml:"action"`
	Node          string         `json:"node,omitempty" yaml:"node,omitempty"`
	Status        string         `json:"status" yaml:"status"`
	Details       string         `json:"details,omitempty" yaml:"details,omitempty"`
	BeforeMetrics map[string]any `json:"before_metrics,omitempty" yaml:"before_metrics,omitempty"`
	AfterMetrics  map[string]any `json:"after_metrics,omitempty" yaml:"after_metrics,omitempty"`
}

// TaskStatus represents the state of a simulated workload task
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskStatuses lists every task status in lifecycle order
var TaskStatuses = []TaskStatus{
	TaskStatusQueued,
	TaskStatusRunning,
	TaskStatusSucceeded,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// Task is a simulated workload entity
type Task struct {
	ID        string         `json:"task_id" yaml:"task_id"`
	Node      string         `json:"node,omitempty" yaml:"node,omitempty"`
	Status    TaskStatus     `json:"status" yaml:"status"`
	Payload   map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	Details   string         `json:"details,omitempty" yaml:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}
