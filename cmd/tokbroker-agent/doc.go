// Package main provides the entry point for tokbroker-agent.
//
// tokbroker-agent keeps a principal's token fresh in the shared cache so
// that tokbroker invocations and library callers on the same host never
// wait for a sign-in. It serves health, status and Prometheus metrics on
// agent.listen and reloads the log level when the configuration file
// changes.
//
// Usage:
//
//	tokbroker-agent [--config /path/to/config.yaml]
package main
