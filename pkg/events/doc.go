/*
Package events provides the in-process event broker and the best-effort
operations side channel.

# Broker

Broker is a small pub/sub hub: Publish queues an event into a bounded buffer,
a single goroutine fans it out to every named Subscription. Publish never
blocks; events that do not fit are dropped. A full queue or a stopped broker
counts against Broker.Dropped, a slow consumer against Subscription.Dropped.

Event types:

  - operation.recorded: an operations log entry was persisted (Event.Audit set)
  - node.down / node.up: a node changed reachability between two metric refreshes

# Auditor

Auditor is the single write path for the operations log. It stores the entry
through AuditStore first and only then publishes operation.recorded, so a
subscriber never sees an operation the store rejected.

# Forwarding

Forwarder subscribes to the broker and ships every event, rendered by
Document, to a Sink:

	Auditor.Record ──► store ──► Broker ──► Forwarder ──► Sink
	                                                      ├─ NATSSink  (core publish)
	                                                      ├─ KafkaSink (kafka.Writer)
	                                                      ├─ RedisSink (XADD)
	                                                      └─ NoopSink

Sink errors are logged at debug level and dropped; forwarding never feeds back
into the operation that produced the event. NewSink selects the backend from
config.EventsConfig.
*/
package events
