// Package httpapi talks to the identity service over HTTP/JSON.
//
//	POST /v1/auth/signin        {username, password, duration_seconds?}
//	POST /v1/auth/signout       Authorization: Bearer <token>
//	GET  /v1/discovery/{service}?schema_version=&account_id=
//
// Responses are mapped onto the domain error kinds: rejected credentials
// become AuthenticationRejected, everything the caller could retry later
// becomes RemoteUnavailable.
package httpapi
