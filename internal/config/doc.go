// Package config defines the tokbroker configuration: the principal,
// the identity service, cache and lock backends, logging and the agent.
//
// Configuration is read by Load from a YAML file and TOKBROKER_ environment
// variables on top of Default. Verify rejects unusable settings and
// Sanitize masks secrets for display.
package config
