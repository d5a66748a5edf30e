// Package transport holds the HTTP plumbing shared by the storefront API:
// the middleware chain, request ID propagation, structured request logging,
// panic recovery, and the mapping from domain errors to JSON error bodies.
//
// # Middleware
//
// Middleware wraps an http.Handler. Chain composes several of them so that
// the first argument is the outermost wrapper. The built-in middleware
// assigns a request ID (X-Request-ID), logs each request via log/slog, and
// converts panics into 500 server_error responses.
//
// # Errors
//
// Handlers return plain Go errors. ToAPIError translates storage and auth
// sentinels into *api.APIError values, and WriteError renders them with the
// status code HTTPStatusFromError assigns to each error type.
package transport
