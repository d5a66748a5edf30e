// Package api defines the wire types of the storefront REST API.
//
// This package provides the resource records exposed by the service (users,
// products, orders and their items), the request payloads accepted by the
// write endpoints, the token responses of the credential endpoints, and the
// structured error type returned on every failure.
//
// The package has no external dependencies and performs no I/O. Every type
// carries an explicit JSON field list; secrets such as password hashes are
// tagged `json:"-"` and never leave the process.
//
// Core types:
//   - [User]: account record with the public shape {id, username, email, address}
//   - [Product]: catalog entry with a decimal [Money] price
//   - [Order]: order owned by one user, with nested [OrderItem] records
//   - [TokenPair]: access and refresh tokens returned by the token endpoint
//   - [APIError]: structured error with type, code, param, and message
package api
