package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/pkg/cmap"
)

// DefaultJanitorInterval is how often expired entries are swept.
const DefaultJanitorInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory CredentialStore.
type Store struct {
	entries *cmap.Map[entry]
	now     func() time.Time

	janitorInterval time.Duration
	stopCh          chan struct{}
	doneCh          chan struct{}
	closeOnce       sync.Once
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJanitorInterval sets the sweep interval. Zero disables the janitor.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.janitorInterval = d
		}
	}
}

// WithShards sets the number of map shards (a power of two).
func WithShards(n int) Option {
	return func(s *Store) {
		s.entries = cmap.NewWithShards[entry](n)
	}
}

// New creates a new in-memory store. Call Close to stop the janitor.
func New(opts ...Option) *Store {
	s := &Store{
		entries:         cmap.New[entry](),
		now:             time.Now,
		janitorInterval: DefaultJanitorInterval,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.doneCh)
	}
	return s
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}

	now := s.now()
	if !now.Before(e.expiresAt) {
		s.entries.DeleteIf(key, func(cur entry) bool { return !now.Before(cur.expiresAt) })
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key for ttl.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return domain.ErrInvalidArgument.WithDetailsf("ttl must be positive, got %s", ttl)
	}
	s.entries.Set(key, entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// Has reports whether key holds an unexpired value.
func (s *Store) Has(_ context.Context, key string) (bool, error) {
	e, ok := s.entries.Get(key)
	return ok && s.now().Before(e.expiresAt), nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *Store) Len() int {
	return s.entries.Count()
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (s *Store) PurgeExpired() int {
	now := s.now()
	return s.entries.RemoveAll(func(_ string, e entry) bool {
		return !now.Before(e.expiresAt)
	})
}

// Close stops the janitor. The store stays usable.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	return nil
}

func (s *Store) janitor() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.PurgeExpired()
		case <-s.stopCh:
			return
		}
	}
}
