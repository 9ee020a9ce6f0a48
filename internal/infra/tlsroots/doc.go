// Package tlsroots builds the client TLS configuration used to reach the
// identity service.
//
//   - roots.go: system roots plus custom CA files and directories
//   - clientcert.go: client certificate for mutual TLS, reloaded via fsnotify
//     when the files on disk are rotated
package tlsroots
