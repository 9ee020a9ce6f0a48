// Package command defines the tokbroker command line using urfave/cli/v2.
//
// Every command loads the configuration, wires an app.App, performs one
// operation and closes it again, so concurrent invocations coordinate only
// through the shared credential store and lock backend:
//
//   - token, renew, status, signout: the principal's bearer token
//   - resolve: memoized endpoint discovery
//   - cache prune: remove expired cache entries
//   - config show, validate, path: inspect the configuration
//   - version: build information
package command
