/*
Package storage provides BoltDB-backed persistence for the balancer's records.

The Store interface is the record-access contract the rest of the module
depends on; BoltStore implements it on top of bbolt with one JSON document per
key:

	┌──────────────── <dataDir>/zkbalancer.db ────────────────┐
	│                                                          │
	│  artifacts    big-endian uint64 ID -> types.Artifact     │
	│  node_states  node name            -> types.DrainState   │
	│  operations   big-endian uint64 ID -> types.AuditEntry   │
	│  tasks        task ID              -> types.Task         │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

IDs come from each bucket's NextSequence, so keys sort in insertion order and
ListAudit can walk the operations bucket backwards for newest-first output.

# Ordering

ListArtifacts is the listing order every placement decision is derived from:
CreatedAt descending, ties broken by ID descending. SortArtifacts exposes the
same ordering for callers that assemble artifact lists themselves.

ListTasks orders by UpdatedAt descending.

# Invariants

Artifact history is append-only. UpdateArtifact rejects a history that drops
or changes an existing event with ErrHistoryRewrite and leaves the record
untouched.

SetNodeState is last-write-wins and always stamps UpdatedAt.

# Errors

  - ErrNotFound: the record does not exist
  - ErrStoreUnavailable: the database is closed or its file lock timed out
  - ErrHistoryRewrite: see above

All calls are synchronous and run in their own transaction; no transaction
spans multiple calls.
*/
package storage
