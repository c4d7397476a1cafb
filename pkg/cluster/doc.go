// Package cluster aggregates per-node probe results into one cluster view.
//
// Probes run concurrently, one goroutine per configured endpoint, and Status
// waits for all of them. An unreachable node shows up as down with its error
// attached; the leader is the first node reporting zk_server_state "leader".
package cluster
