package benchmark

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/internal/storage"
	"github.com/yndnr/tokbroker/internal/storage/filestore"
	"github.com/yndnr/tokbroker/internal/storage/memory"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// EntryCounts defines the number of cached entries for store benchmarks.
var EntryCounts = []int{100, 1000, 10000}

// PayloadSizes defines the value sizes for store and cipher benchmarks.
var PayloadSizes = []int{64, 256, 1024, 4096}

// backend opens a store for a benchmark and closes it when the benchmark ends.
type backend struct {
	name string
	open func(b *testing.B) service.CredentialStore
}

var backends = []backend{
	{"memory", func(b *testing.B) service.CredentialStore {
		s := memory.New()
		b.Cleanup(func() { s.Close() })
		return s
	}},
	{"file", func(b *testing.B) service.CredentialStore {
		s, err := filestore.New(b.TempDir())
		if err != nil {
			b.Fatalf("filestore.New: %v", err)
		}
		return s
	}},
	{"badger", func(b *testing.B) service.CredentialStore {
		cfg := storage.DefaultBadgerConfig()
		cfg.InMemory = true
		cfg.GCInterval = 0
		s, err := storage.NewBadgerStore("", cfg, logger.Nop())
		if err != nil {
			b.Fatalf("NewBadgerStore: %v", err)
		}
		b.Cleanup(func() { s.Close() })
		return s
	}},
}

// randomToken returns a URL-safe random credential of n bytes.
func randomToken(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// prefill writes count entries of size bytes and returns their keys.
func prefill(b *testing.B, s service.CredentialStore, count, size int) []string {
	b.Helper()
	ctx := context.Background()
	value := make([]byte, size)
	rand.Read(value)

	keys := make([]string, count)
	for i := range keys {
		keys[i] = domain.CacheKey(domain.OpSignIn, fmt.Sprintf("bench/user-%d", i))
		if err := s.Set(ctx, keys[i], value, time.Hour); err != nil {
			b.Fatalf("Set: %v", err)
		}
	}
	return keys
}

// benchAuth is an identity service that answers instantly.
type benchAuth struct {
	signIns atomic.Int64
}

func (a *benchAuth) SignIn(_ context.Context, _ domain.Principal, d time.Duration) (*domain.SignInResponse, error) {
	a.signIns.Add(1)
	if d == 0 {
		d = time.Hour
	}
	return &domain.SignInResponse{
		Token:    randomToken(32),
		IssuedAt: time.Now(),
		Lifetime: d,
	}, nil
}

func (a *benchAuth) SignOut(context.Context, *domain.Token) error { return nil }

func mustPrincipal(b *testing.B, username string) domain.Principal {
	b.Helper()
	p, err := domain.NewPrincipal(username, "bench-secret")
	if err != nil {
		b.Fatal(err)
	}
	return p
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

func sizeLabel(size int) string {
	if size >= 1024 {
		return fmt.Sprintf("%dKB", size/1024)
	}
	return fmt.Sprintf("%dB", size)
}
