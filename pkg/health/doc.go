/*
Package health implements the diagnostic probe used to query coordination-service
nodes.

A probe speaks the four-letter diagnostic protocol: it opens a TCP connection,
writes a single command (normally "mntr") followed by a newline, half-closes
the connection and reads until the peer closes. The response is a flat text
table of key<TAB>value lines:

	zk_version	3.8.4-9316c2a7a97e1666d8f4593f34dd6fc36ecc436c
	zk_avg_latency	0.4
	zk_num_alive_connections	3
	zk_server_state	follower

# Parsing

ParseMntr decodes the response best-effort (invalid UTF-8 bytes are dropped
before parsing) and applies CoerceValue to every value:

  - digit-only values become integers
  - values that parse as floating point become floats
  - everything else stays a string

Lines without a tab are ignored rather than treated as errors, so a node that
refuses the command (for example because it is not whitelisted) simply yields
an empty table.

# Retries

Each attempt is bounded by Config.Timeout. Connection and timeout failures are
retried Config.Retries times with Config.RetryDelay between attempts; no delay
follows the last attempt. When every attempt fails, Probe returns an
*UnreachableError that matches ErrProbeUnreachable and unwraps to the last
cause:

	metrics, err := prober.Probe(ctx, "zk1:2181")
	if errors.Is(err, health.ErrProbeUnreachable) {
		// node is down for this aggregation pass
	}

The worst-case duration of a probe is therefore
(Retries+1)*Timeout + Retries*RetryDelay.

A read timeout that fires after some bytes have arrived ends the response
instead of failing the attempt; nodes that keep the connection open after
answering are still readable.
*/
package health
