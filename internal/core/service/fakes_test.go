package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory CredentialStore with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	entries map[string]fakeEntry

	getErr error
	setErr error
	delErr error
}

type fakeEntry struct {
	value     []byte
	expiresAt time.Time
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{clock: clock, entries: make(map[string]fakeEntry)}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	e, ok := s.entries[key]
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = fakeEntry{value: append([]byte(nil), value...), expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.entries, key)
	return nil
}

func (s *fakeStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (s *fakeStore) expiry(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e.expiresAt, ok
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fakeLocker serializes holders of the same name with a buffered channel.
type fakeLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}

	// onAcquire runs after a successful acquisition.
	onAcquire func(name string)
	acquired  atomic.Int32
	released  atomic.Int32
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{slots: make(map[string]chan struct{})}
}

func (l *fakeLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[name] = ch
	}
	return ch
}

// hold takes name and returns a func that gives it back.
func (l *fakeLocker) hold(name string) func() {
	ch := l.slot(name)
	ch <- struct{}{}
	return func() { <-ch }
}

func (l *fakeLocker) Acquire(ctx context.Context, name string, wait time.Duration) (Lock, error) {
	ch := l.slot(name)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domain.ErrLockConflict.WithDetailsf("lock %q", name)
	}

	l.acquired.Add(1)
	if l.onAcquire != nil {
		l.onAcquire(name)
	}
	return &fakeLock{name: name, locker: l, ch: ch}, nil
}

type fakeLock struct {
	name   string
	locker *fakeLocker
	ch     chan struct{}
	once   sync.Once
}

func (l *fakeLock) Name() string { return l.name }

func (l *fakeLock) Release() error {
	released := false
	l.once.Do(func() {
		<-l.ch
		l.locker.released.Add(1)
		released = true
	})
	if !released {
		return fmt.Errorf("lock %q released twice", l.name)
	}
	return nil
}

// fakeTransport counts remote calls.
type fakeTransport struct {
	clock *fakeClock

	signIns    atomic.Int32
	signOuts   atomic.Int32
	resolves   atomic.Int32
	delay      time.Duration
	lifetime   time.Duration
	signInErr  error
	signOutErr error
	resolveErr error
	urls       []string

	lastDuration atomic.Int64
}

func newFakeTransport(clock *fakeClock) *fakeTransport {
	return &fakeTransport{
		clock:    clock,
		lifetime: time.Hour,
		urls:     []string{"api-1.example.com", "http://api-2.example.com/base"},
	}
}

func (t *fakeTransport) SignIn(ctx context.Context, p domain.Principal, duration time.Duration) (*domain.SignInResponse, error) {
	n := t.signIns.Add(1)
	t.lastDuration.Store(int64(duration))
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, domain.ErrRemoteUnavailable.WithCause(ctx.Err())
		}
	}
	if t.signInErr != nil {
		return nil, t.signInErr
	}
	lifetime := t.lifetime
	if duration > 0 && duration < lifetime {
		lifetime = duration
	}
	return &domain.SignInResponse{
		Token:    fmt.Sprintf("%s-token-%04d-abcdefghijklmnop", p.Name(), n),
		IssuedAt: t.clock.Now(),
		Lifetime: lifetime,
	}, nil
}

func (t *fakeTransport) SignOut(_ context.Context, _ *domain.Token) error {
	t.signOuts.Add(1)
	return t.signOutErr
}

func (t *fakeTransport) Resolve(_ context.Context, req domain.ResolveRequest) (*domain.EndpointSet, error) {
	t.resolves.Add(1)
	if t.resolveErr != nil {
		return nil, t.resolveErr
	}
	return &domain.EndpointSet{
		Service:       req.Service,
		SchemaVersion: req.SchemaVersion,
		AccountID:     req.AccountID,
		URLs:          t.urls,
	}, nil
}
