// Package metric provides Prometheus metrics for tokbroker.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, recording helpers and HTTP handler
//   - collector.go: Collector exporting the state of a kept token
//
// Metrics include:
//
//   - Token requests by the source that satisfied them
//   - Sign-in, sign-out and resolve outcomes
//   - Cache read outcomes and lock wait latency
//
// Metrics are exposed at /metrics in Prometheus format by tokbroker-agent.
// Every recording method is safe to call on a nil *Registry.
package metric
