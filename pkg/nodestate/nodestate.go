// Package nodestate holds the administrator-controlled drain flag of each
// configured node.
//
// Drain is only ever set by an explicit SetDrain call. Nothing in the
// balancer drains a node on its own, not even when it is unreachable.
package nodestate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/types"
)

// ErrInvalidDrainTarget is returned for nodes that are not configured
var ErrInvalidDrainTarget = errors.New("invalid drain target")

// Backend persists drain states
type Backend interface {
	GetNodeStates() (map[string]types.DrainState, error)
	SetNodeState(node string, drained bool, reason string) (types.DrainState, error)
}

// Auditor records administrative operations
type Auditor interface {
	Record(entry *types.AuditEntry) error
}

// Store validates and records drain changes
type Store struct {
	backend Backend
	auditor Auditor
	nodes   map[string]bool
	order   []string
}

// NewStore creates a node state store for the given node names.
// auditor may be nil.
func NewStore(backend Backend, auditor Auditor, nodes []string) *Store {
	known := make(map[string]bool, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !known[n] {
			known[n] = true
			order = append(order, n)
		}
	}
	return &Store{backend: backend, auditor: auditor, nodes: known, order: order}
}

// Nodes returns the configured node names in order
func (s *Store) Nodes() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SetDrain sets or clears the drain flag of node. It is idempotent and
// last-write-wins; every call refreshes UpdatedAt. Undraining clears the
// reason. Unknown nodes are rejected before anything is written.
func (s *Store) SetDrain(node string, drained bool, reason, actor string) (types.DrainState, error) {
	if !s.nodes[node] {
		return types.DrainState{}, fmt.Errorf("%w: %q is not a configured node", ErrInvalidDrainTarget, node)
	}

	reason = strings.TrimSpace(reason)
	if !drained {
		reason = ""
	}

	state, err := s.backend.SetNodeState(node, drained, reason)
	if err != nil {
		return types.DrainState{}, fmt.Errorf("failed to update node %s: %w", node, err)
	}

	logger := log.WithNode(node)
	logger.Info().
		Bool("drained", drained).
		Str("reason", reason).
		Str("actor", actor).
		Msg("Node drain state updated")

	if s.auditor != nil {
		action, details := "undrain", fmt.Sprintf("Node %s returned to service", node)
		if drained {
			action, details = "drain", fmt.Sprintf("Node %s marked as drained", node)
			if reason != "" {
				details += ": " + reason
			}
		}
		entry := &types.AuditEntry{
			Actor:   actor,
			Action:  action,
			Node:    node,
			Status:  types.AuditStatusSuccess,
			Details: details,
		}
		if err := s.auditor.Record(entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to audit drain change")
		}
	}

	return state, nil
}

// GetStates returns the persisted drain state of every node that has one
func (s *Store) GetStates() (map[string]types.DrainState, error) {
	states, err := s.backend.GetNodeStates()
	if err != nil {
		return nil, fmt.Errorf("failed to read node states: %w", err)
	}
	return states, nil
}

// Drained returns the configured nodes currently drained, in configured order
func (s *Store) Drained() ([]string, error) {
	states, err := s.GetStates()
	if err != nil {
		return nil, err
	}
	var drained []string
	for _, n := range s.order {
		if states[n].Drained {
			drained = append(drained, n)
		}
	}
	return drained, nil
}
