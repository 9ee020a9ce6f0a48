package domain

import (
	"log/slog"
	"strings"
)

// RealmSeparator separates the realm from the account name in a username.
const RealmSeparator = "/"

// Principal is the identity that signs in against the identity service.
// The zero value is not usable; construct with NewPrincipal.
type Principal struct {
	username string
	secret   string
}

// NewPrincipal validates username and secret and returns a Principal.
// The username must have the form "realm/name".
func NewPrincipal(username, secret string) (Principal, error) {
	username = strings.TrimSpace(username)

	realm, name, ok := strings.Cut(username, RealmSeparator)
	if !ok {
		return Principal{}, ErrInvalidPrincipal.WithDetailsf("username %q has no realm separator %q", username, RealmSeparator)
	}
	if strings.TrimSpace(realm) == "" || strings.TrimSpace(name) == "" {
		return Principal{}, ErrInvalidPrincipal.WithDetailsf("username %q must be realm%sname", username, RealmSeparator)
	}
	if secret == "" {
		return Principal{}, ErrInvalidPrincipal.WithDetails("secret is empty")
	}

	return Principal{username: username, secret: secret}, nil
}

// Username returns the namespaced username.
func (p Principal) Username() string { return p.username }

// Secret returns the principal's secret. Only transports should call this.
func (p Principal) Secret() string { return p.secret }

// Realm returns the namespace part of the username.
func (p Principal) Realm() string {
	realm, _, _ := strings.Cut(p.username, RealmSeparator)
	return realm
}

// Name returns the account part of the username.
func (p Principal) Name() string {
	_, name, _ := strings.Cut(p.username, RealmSeparator)
	return name
}

// IsZero reports whether p was not built by NewPrincipal.
func (p Principal) IsZero() bool {
	return p.username == ""
}

// String returns the username. The secret is never included.
func (p Principal) String() string {
	return p.username
}

// LogValue implements slog.LogValuer so a Principal logged directly
// only ever exposes its username.
func (p Principal) LogValue() slog.Value {
	return slog.StringValue(p.username)
}
