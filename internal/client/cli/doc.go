// Package cli provides the interactive storefront command-line client.
//
// It wires configuration, local storage, the API gateway and the cart and
// auth services, then runs a REPL. The REPL is the UI collaborator of the
// cart: it renders notifications as "[kind] message" lines and, when the
// session can't be refreshed, prompts for credentials again.
//
// Key features:
//   - Register / Login / Logout / Status
//   - Catalog lookup (show) and cart mutations (add, inc, dec, set, rm)
//   - Cart view with subtotal, manual sync, checkout
//
// Guests can fill the cart; it is merged into the server cart on login.
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
