// Package middleware provides HTTP middleware components for the
// proxy listeners.
//
// # Middleware Components
//
//   - Logging: structured request/response logging
//   - Recovery: panic recovery with stack trace logging
//   - Request ID: unique request identifier injection
//   - Body Limit: request body size limiting
//
// # Usage
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.Logging(logger)(yourHandler),
//	    ),
//	)
package middleware
