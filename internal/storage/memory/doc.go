// Package memory provides an in-process credential store.
//
// Entries live in a sharded concurrent map and expire lazily on read; an
// optional janitor goroutine also sweeps expired entries periodically.
//
// The store is only shared by goroutines of one process. Deployments where
// several processes sign in as the same principal need the filestore,
// badger or postgres backends instead.
package memory
