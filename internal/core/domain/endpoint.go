package domain

import (
	"math/rand/v2"
	"net/url"
	"strings"
)

// ResolveRequest identifies an endpoint lookup.
type ResolveRequest struct {
	// Service is the logical service name (e.g. "rest", "soap").
	Service string
	// SchemaVersion is the API schema version the caller speaks.
	SchemaVersion string
	// AccountID scopes the lookup to one account; empty for global lookups.
	AccountID string
	// Insecure selects plain http when normalizing the chosen URL.
	Insecure bool
}

// Validate checks the required fields.
func (r ResolveRequest) Validate() error {
	if strings.TrimSpace(r.Service) == "" {
		return ErrInvalidArgument.WithDetails("service name is required")
	}
	if strings.TrimSpace(r.SchemaVersion) == "" {
		return ErrInvalidArgument.WithDetails("schema version is required")
	}
	return nil
}

// EndpointSet is the set of candidate base URLs for a service.
// Any member is usable.
type EndpointSet struct {
	Service       string   `cbor:"1,keyasint" json:"service" yaml:"service"`
	SchemaVersion string   `cbor:"2,keyasint" json:"schema_version" yaml:"schema_version"`
	AccountID     string   `cbor:"3,keyasint,omitempty" json:"account_id,omitempty" yaml:"account_id,omitempty"`
	URLs          []string `cbor:"4,keyasint" json:"urls" yaml:"urls"`
}

// Pick chooses one URL and normalizes its scheme. intn must return a value
// in [0, n); nil selects uniformly at random.
func (s *EndpointSet) Pick(intn func(n int) int, insecure bool) (string, error) {
	if s == nil || len(s.URLs) == 0 {
		return "", ErrRemoteResponseInvalid.WithDetails("no endpoints resolved")
	}
	if intn == nil {
		intn = rand.IntN
	}
	return NormalizeURL(s.URLs[intn(len(s.URLs))], insecure)
}

// NormalizeURL forces https (or http when insecure) onto raw. URLs without
// a scheme get one; schemes other than http and https are rejected.
func NormalizeURL(raw string, insecure bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRemoteResponseInvalid.WithDetails("empty endpoint url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrRemoteResponseInvalid.WithDetailsf("endpoint url %q", raw).WithCause(err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", ErrRemoteResponseInvalid.WithDetailsf("endpoint url %q has unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", ErrRemoteResponseInvalid.WithDetailsf("endpoint url %q has no host", raw)
	}

	u.Scheme = "https"
	if insecure {
		u.Scheme = "http"
	}
	return u.String(), nil
}
