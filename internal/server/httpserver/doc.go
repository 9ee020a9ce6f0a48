// Package httpserver serves the agent's local admin endpoints: health,
// readiness, keeper status and Prometheus metrics.
//
// Handlers are wrapped with the middleware in this package (request IDs,
// access logging, panic recovery, network ACL and rate limiting).
package httpserver
