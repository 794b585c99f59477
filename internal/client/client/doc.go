// Package client contains the client-side transport for the storefront API.
//
// # Overview
//
// The package provides:
//  1. Gateway, the single HTTP entry point. It injects the bearer token,
//     and on a 401 refreshes the access token once (concurrent 401s share
//     one refresh call) and replays the original request once.
//  2. A typed API contract (see the Client interface) and its REST
//     implementation RESTClient: cart lines, catalog lookups, orders and
//     authentication.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Non-2xx responses are returned as *StatusError, which unwraps to
// ErrUnauthorized, ErrNotFound or ErrUnavailable where the status code has
// that meaning. Transport failures wrap ErrUnavailable. A session that can't
// be refreshed yields ErrSessionExpired.
package client
