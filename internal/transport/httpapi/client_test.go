package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

var issued = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithLogger(logger.Nop()), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func mustPrincipal(t *testing.T) domain.Principal {
	t.Helper()
	p, err := domain.NewPrincipal("corp/alice", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://id.example.com/", "https://id.example.com", false},
		{"id.example.com", "https://id.example.com", false},
		{"http://localhost:8080", "http://localhost:8080", false},
		{"", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := New(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.BaseURL() != tt.want {
				t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), tt.want)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	var gotReq signInRequest
	var gotHeader http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathSignIn {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotHeader = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"tok-value-0123456789","issued_at":"2026-03-01T12:00:00Z","expires_in":3600}`))
	}))

	ctx := logger.WithRequestID(context.Background(), "req-42")
	resp, err := c.SignIn(ctx, mustPrincipal(t), 15*time.Minute)
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if gotReq.Username != "corp/alice" || gotReq.Password != "hunter22" || gotReq.DurationSeconds != 900 {
		t.Errorf("request body = %+v", gotReq)
	}
	if gotHeader.Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id = %q", gotHeader.Get(RequestIDHeader))
	}
	if !strings.HasPrefix(gotHeader.Get("User-Agent"), "tokbroker/") {
		t.Errorf("User-Agent = %q", gotHeader.Get("User-Agent"))
	}

	tok, err := domain.NewTokenFromResponse(resp)
	if err != nil {
		t.Fatalf("NewTokenFromResponse() error = %v", err)
	}
	if !tok.ExpiresAt.Equal(issued.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", tok.ExpiresAt)
	}
}

func TestSignIn_ExplicitExpiry(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"t","issued_at":"2026-03-01T12:00:00Z","expires_in":3600,"expires_at":"2026-03-01T12:30:00Z"}`))
	}))

	resp, err := c.SignIn(context.Background(), mustPrincipal(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := domain.NewTokenFromResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !tok.ExpiresAt.Equal(issued.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want explicit expiry", tok.ExpiresAt)
	}
}

func TestSignIn_NoDurationOmitted(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"token":"t","issued_at":"2026-03-01T12:00:00Z","expires_in":60}`))
	}))

	if _, err := c.SignIn(context.Background(), mustPrincipal(t), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["duration_seconds"]; ok {
		t.Error("duration_seconds sent for server default")
	}
}

func TestSignIn_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind domain.Kind
	}{
		{"bad request", http.StatusBadRequest, `{"code":"E1","message":"bad username"}`, domain.KindAuthenticationRejected},
		{"unauthorized", http.StatusUnauthorized, `{"message":"wrong password"}`, domain.KindAuthenticationRejected},
		{"forbidden", http.StatusForbidden, ``, domain.KindAuthenticationRejected},
		{"rate limited", http.StatusTooManyRequests, ``, domain.KindRemoteUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, domain.KindRemoteUnavailable},
		{"unavailable", http.StatusServiceUnavailable, ``, domain.KindRemoteUnavailable},
		{"undecodable", http.StatusOK, `not json`, domain.KindRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.SignIn(context.Background(), mustPrincipal(t), 0)
			if got := domain.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(%v) = %v, want %v", err, got, tt.wantKind)
			}
			if tt.status >= 400 && statusOf(err) != tt.status {
				t.Errorf("statusOf() = %d, want %d", statusOf(err), tt.status)
			}
		})
	}
}

func TestSignIn_MessageSurfaces(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"AUTH_BAD","message":"password expired"}`))
	}))

	_, err := c.SignIn(context.Background(), mustPrincipal(t), 0)
	if !errors.Is(err, domain.ErrAuthenticationRejected) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "password expired") {
		t.Errorf("error %q does not carry the server message", err)
	}
	if strings.Contains(err.Error(), "hunter22") {
		t.Error("error leaks the secret")
	}
}

func TestSignIn_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.SignIn(context.Background(), mustPrincipal(t), 0)
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("error = %v, want ErrRemoteUnavailable", err)
	}
}

func TestSignIn_ContextCanceled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SignIn(ctx, mustPrincipal(t), 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSignOut(t *testing.T) {
	tok := &domain.Token{Value: "tok-value-0123456789", IssuedAt: issued, ExpiresAt: issued.Add(time.Hour)}

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusNoContent, false},
		{"already invalid", http.StatusUnauthorized, false},
		{"forbidden", http.StatusForbidden, true},
		{"server error", http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var auth atomic.Value
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != pathSignOut {
					t.Errorf("path = %s", r.URL.Path)
				}
				auth.Store(r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))

			err := c.SignOut(context.Background(), tok)
			if (err != nil) != tt.wantErr {
				t.Errorf("SignOut() error = %v, wantErr %v", err, tt.wantErr)
			}
			if auth.Load() != "Bearer tok-value-0123456789" {
				t.Errorf("Authorization = %v", auth.Load())
			}
		})
	}
}

func TestSignOut_NilToken(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	if err := c.SignOut(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 0 {
		t.Error("sign-out sent without a token")
	}
}

func TestResolve(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/discovery/rest api" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("schema_version") != "v2" || q.Get("account_id") != "acct-9" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"urls":["api-1.example.com","https://api-2.example.com"]}`))
	}))

	set, err := c.Resolve(context.Background(), domain.ResolveRequest{Service: "rest api", SchemaVersion: "v2", AccountID: "acct-9"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if set.Service != "rest api" || set.SchemaVersion != "v2" || set.AccountID != "acct-9" {
		t.Errorf("identity = %+v", set)
	}
	if len(set.URLs) != 2 {
		t.Errorf("URLs = %v", set.URLs)
	}
}

func TestResolve_GlobalOmitsAccount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("account_id") {
			t.Error("account_id sent for a global lookup")
		}
		_, _ = w.Write([]byte(`{"urls":[]}`))
	}))

	set, err := c.Resolve(context.Background(), domain.ResolveRequest{Service: "rest", SchemaVersion: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(set.URLs) != 0 {
		t.Errorf("URLs = %v", set.URLs)
	}
}

func TestRequestID_Generated(t *testing.T) {
	var id atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id.Store(r.Header.Get(RequestIDHeader))
		_, _ = w.Write([]byte(`{"urls":["a.example"]}`))
	}))

	if _, err := c.Resolve(context.Background(), domain.ResolveRequest{Service: "s", SchemaVersion: "v"}); err != nil {
		t.Fatal(err)
	}
	if got, _ := id.Load().(string); len(got) != 26 {
		t.Errorf("generated request id = %q, want a ULID", got)
	}
}
