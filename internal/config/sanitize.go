package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg

	if sanitized.Principal.Secret != "" {
		sanitized.Principal.Secret = maskSecret(sanitized.Principal.Secret)
	}
	if sanitized.Store.Passphrase != "" {
		sanitized.Store.Passphrase = maskSecret(sanitized.Store.Passphrase)
	}
	if sanitized.Store.Postgres.DSN != "" {
		sanitized.Store.Postgres.DSN = maskDSN(sanitized.Store.Postgres.DSN)
	}
	return &sanitized
}

// maskSecret masks a secret value for safe display.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskDSN hides the password of a URL or key=value connection string.
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Redacted()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=****"
		}
	}
	return strings.Join(fields, " ")
}
