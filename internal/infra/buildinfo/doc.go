// Package buildinfo reports the version of the running tokbroker binary.
//
// Release builds inject values via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/tokbroker/internal/infra/buildinfo.Version=v1.0.0"
//
// Values left unset fall back to the module and VCS metadata embedded by
// the Go toolchain.
package buildinfo
