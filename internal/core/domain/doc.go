// Package domain defines the core domain models for tokbroker.
//
// Domain models are pure value objects without any IO dependencies.
// This package contains:
//
//   - Principal: the namespaced identity that signs in
//   - Token: a bearer credential with an expiration instant
//   - EndpointSet: resolved base URLs for a logical service
//   - Cache keys and lock names derived from the above
//   - Errors: the closed set of failure kinds surfaced to callers
package domain
