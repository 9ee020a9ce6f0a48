// Package main provides the entry point for tokbroker.
//
// tokbroker hands out bearer tokens for a principal and resolves service
// endpoints, sharing both with every other process that uses the same
// cache directory:
//
//   - token: print a valid token, signing in only when none is cached
//   - renew: force a fresh sign-in
//   - status: show the cached token without signing in
//   - signout: invalidate the token and drop it from the cache
//   - resolve: print a service base URL
//   - cache prune: remove expired entries
//   - config show|validate|path
//
// Usage:
//
//	tokbroker [global flags] command [flags]
//	tokbroker -u corp/alice --secret-file ~/.secret token --header
//	tokbroker resolve rest -s v2 -a 1234
//
// The exit status is 0 on success, 2 for an invalid principal, 3 when
// the identity service rejected the credentials, 4 on lock timeout, 5 when
// the identity service is unreachable, 6 when no token is cached and 1 for
// anything else.
package main
