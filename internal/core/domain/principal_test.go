package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNewPrincipal(t *testing.T) {
	tests := []struct {
		name     string
		username string
		secret   string
		wantErr  bool
	}{
		{"valid", "realm/alice", "pw", false},
		{"trimmed", "  realm/alice ", "pw", false},
		{"nested name", "realm/team/alice", "pw", false},
		{"no separator", "alice", "pw", true},
		{"empty realm", "/alice", "pw", true},
		{"empty name", "realm/", "pw", true},
		{"blank realm", "  /alice", "pw", true},
		{"empty", "", "pw", true},
		{"empty secret", "realm/alice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrincipal(tt.username, tt.secret)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrincipal) {
					t.Fatalf("error = %v, want ErrInvalidPrincipal", err)
				}
				if !p.IsZero() {
					t.Error("failed construction returned a non-zero principal")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPrincipal() error = %v", err)
			}
			if p.Realm() != "realm" {
				t.Errorf("Realm() = %q, want realm", p.Realm())
			}
		})
	}
}

func TestPrincipal_Accessors(t *testing.T) {
	p, err := NewPrincipal("corp/team/alice", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if p.Username() != "corp/team/alice" {
		t.Errorf("Username() = %q", p.Username())
	}
	if p.Realm() != "corp" || p.Name() != "team/alice" {
		t.Errorf("Realm()/Name() = %q/%q", p.Realm(), p.Name())
	}
	if p.Secret() != "hunter2" {
		t.Error("Secret() mismatch")
	}
}

func TestPrincipal_NeverPrintsSecret(t *testing.T) {
	p, err := NewPrincipal("realm/alice", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []string{
		p.String(),
		fmt.Sprint(p),
		fmt.Sprintf("%v", p),
		p.LogValue().String(),
	} {
		if strings.Contains(s, "hunter2") {
			t.Errorf("%q contains the secret", s)
		}
	}
	if p.LogValue().Kind() != slog.KindString {
		t.Errorf("LogValue().Kind() = %v, want string", p.LogValue().Kind())
	}
}
