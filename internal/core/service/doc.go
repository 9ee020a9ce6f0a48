// Package service orchestrates token acquisition and endpoint discovery.
//
// Services hold no mutable state of their own. Cached values live in a
// CredentialStore and concurrent work is coordinated through a Locker, both
// injected at construction, so any number of service instances (in one
// process or many) can share them.
//
// This package contains:
//
//   - SessionManager: acquire, renew and sign out a principal's token
//   - EndpointResolver: memoized service URL discovery
//   - TokenKeeper: background renewal for long-running agents
//
// Both managers follow the same sequence: read the cache, and on a miss
// take the named lock, read the cache again, call the remote service, store
// the result and release the lock.
package service
