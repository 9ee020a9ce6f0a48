// Package agent runs tokbroker as a long-lived process: it keeps the
// principal's token warm in the shared store so short-lived clients
// always hit the cache, and exposes health and metrics endpoints.
package agent
