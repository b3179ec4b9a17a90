// Package routes provides the shared routing table for the
// configurable HTTP proxy.
//
// This package implements a concurrent path-prefix routing table with
// runtime mutation support and deterministic prefix matching. The
// table is shared between the control-plane API, which mutates it,
// and the proxy dispatcher, which resolves every inbound request
// against it.
//
// # Features
//
//   - Thread-safe upsert, delete, exact lookup, and enumeration
//   - Incrementally maintained ordered index (no sorting on lookup)
//   - Shortest-matching-prefix resolution with deterministic ordering
//   - Optional default target for unmatched paths
//   - Prometheus metrics for table size, mutations, and lookups
//
// # Usage
//
// Create a table and register routes:
//
//	table := routes.NewTable(routes.WithDefaultTarget("http://127.0.0.1:8081"))
//	err := table.Set("/user/alice", "http://10.0.0.5:8888")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	target, prefix, ok := table.FindTarget("/user/alice/tree")
//	if ok {
//	    // Forward the request to target; prefix is the matched spec.
//	}
package routes
