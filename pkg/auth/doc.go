// Package auth provides authentication and authorization for the storefront.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). When every authenticator abstains the
// chain's default decides; the server runs with Yes, so requests without
// credentials proceed as the anonymous identity.
//
// The resolved Identity is computed once per request by the middleware and
// handed to the handlers, which pass it explicitly to the Authorization Gate
// ([Allow], [Authorize]) before touching any store.
package auth
