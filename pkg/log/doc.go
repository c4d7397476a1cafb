/*
Package log provides structured logging for zkbalancer using zerolog.

A single global Logger is configured once at startup through Init and every
long-lived component derives a child logger from it:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("scheduler")
	logger.Info().
		Str("source", plan.SourceNode).
		Str("target", plan.TargetNode).
		Int("delta", plan.Delta).
		Msg("Migrating artifact")

Until Init is called the global logger writes human-readable console output to
stdout, which keeps tests and one-shot CLI commands readable.

# Field Conventions

  - component: the emitting subsystem (scheduler, prober, aggregator, mirror, ...)
  - node: short node name (host part of the endpoint)
  - artifact_id: numeric artifact record id
  - task_id: workload task id
  - error: attached with .Err(err)

JSON output is intended for log shippers; console output is intended for
interactive use.
*/
package log
