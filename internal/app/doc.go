// Package app assembles tokbroker from its configuration: logger, metrics,
// credential store, lock backend, identity client and the services built
// on them. Both binaries start here.
package app
