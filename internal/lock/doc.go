// Package lock implements service.Locker backends.
//
//   - local: in-process only, for single-process deployments
//   - file: flock(2) on a shared directory, for processes on one host
//   - postgres: session advisory locks, for processes on many hosts
//
// A held lock is released by Release or, for the file and postgres
// backends, when the holding process exits.
package lock
