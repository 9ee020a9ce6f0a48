// Package storage opens the credential store shared by every process that
// acquires tokens for the same principals.
//
// Backends:
//
//   - memory: process-local, lost on exit
//   - file: one file per key under a shared directory, optionally sealed
//   - badger: embedded LSM store, single process only
//   - postgres: a table in a shared database
//
// All backends expire entries on read; file and postgres are also pruned
// in the background when a prune interval is configured.
package storage
