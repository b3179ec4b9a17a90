// Package proxy forwards public traffic to the backend resolved from
// the route table.
//
// The Dispatcher looks up each request path, rewrites the request for
// the winning backend, and streams the response back. WebSocket
// upgrades are relayed at message level so individual messages can be
// counted. Routing misses and upstream failures are rendered by an
// ErrorResponder, which can relay pages from a dedicated error server,
// serve static HTML from disk, or fall back to JSON bodies.
//
// # Usage
//
// Create a dispatcher over a shared route table:
//
//	dispatcher := proxy.NewDispatcher(table,
//	    proxy.WithProxyLogger(logger),
//	    proxy.WithMetrics(metrics),
//	)
//
//	http.Handle("/", dispatcher)
package proxy
