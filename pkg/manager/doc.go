/*
Package manager assembles a zkbalancer process from configuration.

NewManager opens the bbolt record store and builds every component with
explicit handles:

	config.Config
	     │
	     ▼
	┌──────────────────────────── Manager ────────────────────────────┐
	│ storage.BoltStore ─┬─ nodestate.Store ──┐                       │
	│                    ├─ artifact.Service ─┼─ mirror.Replicator    │
	│                    ├─ tasks.Service     │                       │
	│                    └─ scheduler ────────┘── migrate.Executor    │
	│                                                 │               │
	│ health.Prober ── cluster.Aggregator ── metrics.Collector        │
	│                                                                  │
	│ events.Auditor ── events.Broker ── events.Forwarder ── Sink     │
	└──────────────────────────────────────────────────────────────────┘

Start launches the background work: the event broker and forwarder, the
metrics collector, the scheduler loop (when enabled) and the HTTP endpoint
serving /metrics, /health, /ready and /live. One-shot CLI commands build a
manager, use its accessors and call Shutdown without ever calling Start.

Shutdown stops the loops in reverse order, waits for an in-flight migration
to finish, then closes the mirror session and the record store.
*/
package manager
