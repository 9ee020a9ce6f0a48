package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// Redacted replaces values logged under sensitive keys.
const Redacted = "***REDACTED***"

// Key fragments that mark a credential.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"credential",
	"authorization",
	"bearer",
	"api_key",
	"private_key",
	"encryption_key",
}

// Key suffixes that are never sensitive even when the key matches a
// pattern, e.g. token_id or expires_at.
var publicKeySuffixes = []string{
	"_id",
	"_at",
	"_file",
}

const bearerPrefix = "Bearer "

// redact scrubs a single attribute, descending into groups.
func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		scrubbed := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			scrubbed[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(bearerPrefix)) {
			return slog.String(a.Key, MaskBearer(v))
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, Redacted)
		}
		if masked, ok := stripURLPassword(v); ok {
			return slog.String(a.Key, masked)
		}
	}
	return a
}

// IsSensitiveKey reports whether values logged under key must be hidden.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, suffix := range publicKeySuffixes {
		if strings.HasSuffix(k, suffix) {
			return false
		}
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

// MaskBearer keeps the scheme and a short hint of a bearer header value.
// Example: Bearer abc...xyz
func MaskBearer(v string) string {
	body := strings.TrimSpace(v[len(bearerPrefix):])
	if len(body) < 16 {
		return bearerPrefix + "***"
	}
	return bearerPrefix + body[:3] + "..." + body[len(body)-3:]
}

// stripURLPassword hides the password of a URL such as a postgres DSN.
func stripURLPassword(v string) (string, bool) {
	if !strings.Contains(v, "://") || !strings.Contains(v, "@") {
		return "", false
	}
	u, err := url.Parse(v)
	if err != nil || u.User == nil {
		return "", false
	}
	if _, ok := u.User.Password(); !ok {
		return "", false
	}
	return u.Redacted(), true
}
