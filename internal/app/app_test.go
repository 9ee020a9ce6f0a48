//go:build unix

package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/tokbroker/internal/app"
	"github.com/yndnr/tokbroker/internal/config"
	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

type identityServer struct {
	*httptest.Server
	signIns   atomic.Int32
	signOuts  atomic.Int32
	resolves  atomic.Int32
	rejectAll atomic.Bool
}

func newIdentityServer(t *testing.T) *identityServer {
	t.Helper()

	s := &identityServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		if s.rejectAll.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"code": "bad_credentials", "message": "invalid password"})
			return
		}
		// Widen the race window for concurrent callers.
		time.Sleep(20 * time.Millisecond)
		n := s.signIns.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"token":      fmt.Sprintf("issued-token-%04d-abcdefghijkl", n),
			"issued_at":  time.Now().UTC(),
			"expires_in": 3600,
		})
	})
	mux.HandleFunc("POST /v1/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		s.signOuts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v1/discovery/{service}", func(w http.ResponseWriter, r *http.Request) {
		s.resolves.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"urls": []string{"http://" + r.PathValue("service") + ".example.com/api"},
		})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func testConfig(t *testing.T, dir, url string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Principal.Username = "corp/alice"
	cfg.Principal.Secret = "correct-horse"
	cfg.Identity.URL = url
	cfg.Store.Dir = filepath.Join(dir, "store")
	cfg.Store.PruneInterval = 0
	cfg.Lock.Dir = filepath.Join(dir, "locks")
	cfg.Session.LockTimeout = 5 * time.Second
	if err := config.Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()

	a, err := app.New(t.Context(), cfg, app.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_SharedAcquisition(t *testing.T) {
	srv := newIdentityServer(t)
	dir := t.TempDir()

	// Two apps over one directory stand in for two processes.
	apps := []*app.App{
		newApp(t, testConfig(t, dir, srv.URL)),
		newApp(t, testConfig(t, dir, srv.URL)),
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens []*domain.Token
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm, err := apps[i%2].Sessions()
			if err != nil {
				t.Errorf("Sessions() error = %v", err)
				return
			}
			tok, err := sm.AcquireToken(context.Background())
			if err != nil {
				t.Errorf("AcquireToken() error = %v", err)
				return
			}
			mu.Lock()
			tokens = append(tokens, tok)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if got := srv.signIns.Load(); got != 1 {
		t.Errorf("sign-ins = %d, want 1", got)
	}
	for _, tok := range tokens {
		if !tok.Equal(tokens[0]) {
			t.Errorf("token %s differs from %s", tok, tokens[0])
		}
	}
}

func TestApp_SignOut(t *testing.T) {
	srv := newIdentityServer(t)
	a := newApp(t, testConfig(t, t.TempDir(), srv.URL))
	ctx := t.Context()

	sm, err := a.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	first, err := sm.AcquireToken(ctx)
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}

	if err := sm.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if got := srv.signOuts.Load(); got != 1 {
		t.Errorf("sign-outs = %d, want 1", got)
	}

	second, err := sm.AcquireToken(ctx)
	if err != nil {
		t.Fatalf("AcquireToken() after SignOut error = %v", err)
	}
	if second.Equal(first) {
		t.Error("token should be re-issued after sign-out")
	}
	if got := srv.signIns.Load(); got != 2 {
		t.Errorf("sign-ins = %d, want 2", got)
	}
}

func TestApp_Resolve(t *testing.T) {
	srv := newIdentityServer(t)
	dir := t.TempDir()
	req := domain.ResolveRequest{Service: "rest", SchemaVersion: "2.0", AccountID: "acct-1"}

	for i := 0; i < 2; i++ {
		a := newApp(t, testConfig(t, dir, srv.URL))
		got, err := a.Resolver().URL(t.Context(), req)
		if err != nil {
			t.Fatalf("URL() error = %v", err)
		}
		if got != "https://rest.example.com/api" {
			t.Errorf("URL() = %q, want https normalization", got)
		}
	}

	if got := srv.resolves.Load(); got != 1 {
		t.Errorf("discovery calls = %d, want 1", got)
	}
}

func TestApp_AuthenticationRejected(t *testing.T) {
	srv := newIdentityServer(t)
	srv.rejectAll.Store(true)
	a := newApp(t, testConfig(t, t.TempDir(), srv.URL))

	sm, err := a.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	_, err = sm.AcquireToken(t.Context())
	if !errors.Is(err, domain.ErrAuthenticationRejected) {
		t.Fatalf("AcquireToken() error = %v, want ErrAuthenticationRejected", err)
	}
	if strings.Contains(err.Error(), "correct-horse") {
		t.Errorf("error leaks the secret: %v", err)
	}

	if _, err := sm.CachedToken(t.Context()); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("CachedToken() error = %v, want ErrTokenNotFound", err)
	}
}

func TestApp_InvalidPrincipal(t *testing.T) {
	srv := newIdentityServer(t)
	cfg := testConfig(t, t.TempDir(), srv.URL)
	cfg.Principal.Secret = ""
	a := newApp(t, cfg)

	if _, err := a.Sessions(); !errors.Is(err, domain.ErrInvalidPrincipal) {
		t.Errorf("Sessions() error = %v, want ErrInvalidPrincipal", err)
	}
	if a.Resolver() == nil {
		t.Error("Resolver() should work without a usable principal")
	}
}

func TestNew_BadStore(t *testing.T) {
	cfg := testConfig(t, t.TempDir(), "https://id.example.com")
	cfg.Store.Backend = "cassandra"

	if _, err := app.New(t.Context(), cfg, app.WithLogger(logger.Nop())); err == nil {
		t.Fatal("New() should fail for an unknown store backend")
	}
}
