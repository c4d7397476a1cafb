/*
Package tasks tracks simulated workload tasks and enforces their lifecycle.

	queued ──▶ running ──▶ succeeded
	   │          │
	   │          └──────▶ failed
	   │          │
	   └──────────┴──────▶ cancelled

Writes are last-write-wins upserts; the store refreshes updated_at on every
write and keeps created_at from the first one. When a history limit is set,
creating a task prunes all but the newest tasks.
*/
package tasks
