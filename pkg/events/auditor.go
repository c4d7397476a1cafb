package events

import (
	"fmt"

	"github.com/cuemby/zkbalancer/pkg/types"
)

// AuditStore persists operations log entries
type AuditStore interface {
	RecordAudit(entry *types.AuditEntry) error
}

// Auditor records an operation in the store and announces it on the broker
type Auditor struct {
	store  AuditStore
	broker *Broker
}

// NewAuditor creates an auditor. broker may be nil.
func NewAuditor(store AuditStore, broker *Broker) *Auditor {
	return &Auditor{store: store, broker: broker}
}

// Record persists entry and then publishes it. Only the store write can fail.
func (a *Auditor) Record(entry *types.AuditEntry) error {
	if err := a.store.RecordAudit(entry); err != nil {
		return fmt.Errorf("failed to record %s operation: %w", entry.Action, err)
	}
	if a.broker != nil {
		message := entry.Details
		if message == "" {
			message = entry.Action
		}
		a.broker.Publish(&Event{
			Type:      EventOperationRecorded,
			Timestamp: entry.Timestamp,
			Message:   message,
			Metadata: map[string]string{
				"action": entry.Action,
				"status": entry.Status,
				"node":   entry.Node,
			},
			Audit: entry,
		})
	}
	return nil
}
