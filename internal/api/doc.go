// Package api implements the admin API for runtime route management.
//
// The API listens on a separate, inward-facing address and requires a
// shared token on every request. It exposes the route table as a REST
// resource:
//
//   - GET /api/routes lists all registered routes
//   - POST /api/routes/<spec> registers or replaces a route
//   - DELETE /api/routes/<spec> removes a route
//
// # Authentication
//
// Every request must carry an Authorization header of the form
// "token <secret>". The check runs before any routing or body
// handling; failures receive 403 with no response body.
//
// # Usage
//
//	server := api.NewServer(table, api.StaticTokenSource(token), logger)
//	http.ListenAndServe(":8001", server.Handler())
package api
