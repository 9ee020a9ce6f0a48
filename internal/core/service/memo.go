package service

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/pkg/codec"
)

// Where a memoized value came from.
const (
	sourceCache   = "cache"
	sourceRecheck = "recheck"
	sourceRemote  = "remote"
)

// memoizer implements the cached remote lookup shared by sign-in and
// endpoint discovery: fast-path read, lock, second read, fetch, store.
type memoizer[T any] struct {
	kind   string
	store  CredentialStore
	locker Locker
	opts   *options
}

// memoCall describes one lookup.
type memoCall[T any] struct {
	key      string
	lockName string
	// force skips both cache reads.
	force bool
	// usable rejects cached values the caller cannot use.
	usable func(T) bool
	// fetch performs the remote call and returns the value with the TTL to
	// cache it for. A non-positive TTL skips the write.
	fetch func(ctx context.Context) (T, time.Duration, error)
}

// get returns the value and the source that produced it.
func (m *memoizer[T]) get(ctx context.Context, c memoCall[T]) (T, string, error) {
	var zero T

	if !c.force {
		if v, ok := m.read(ctx, c.key, c.usable); ok {
			return v, sourceCache, nil
		}
	}

	started := m.opts.now()
	lk, err := m.locker.Acquire(ctx, c.lockName, m.opts.lockTimeout)
	m.opts.metrics.ObserveLockWait(m.kind, m.opts.now().Sub(started))
	if err != nil {
		if errors.Is(err, domain.ErrLockConflict) {
			m.opts.metrics.IncLockConflict(m.kind)
		}
		return zero, "", err
	}
	defer m.release(ctx, lk)

	// Another holder may have filled the cache while we waited.
	if !c.force {
		if v, ok := m.read(ctx, c.key, c.usable); ok {
			return v, sourceRecheck, nil
		}
	}

	v, ttl, err := c.fetch(ctx)
	if err != nil {
		return zero, "", err
	}

	if ttl > 0 {
		m.write(ctx, c.key, v, ttl)
	}
	return v, sourceRemote, nil
}

// read treats every failure as a miss.
func (m *memoizer[T]) read(ctx context.Context, key string, usable func(T) bool) (T, bool) {
	var zero T
	log := m.opts.logger.WithContext(ctx)

	data, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			m.opts.metrics.RecordCacheRead(m.kind, "miss")
		} else {
			m.opts.metrics.RecordCacheRead(m.kind, "error")
			log.Warn("credential store read failed, treating as miss", "kind", m.kind, "error", err)
		}
		return zero, false
	}

	var v T
	if err := codec.Unmarshal(data, &v); err != nil {
		m.opts.metrics.RecordCacheRead(m.kind, "error")
		log.Warn("discarding undecodable cache entry", "kind", m.kind, "error", err)
		return zero, false
	}
	if usable != nil && !usable(v) {
		m.opts.metrics.RecordCacheRead(m.kind, "miss")
		return zero, false
	}

	m.opts.metrics.RecordCacheRead(m.kind, "hit")
	return v, true
}

func (m *memoizer[T]) write(ctx context.Context, key string, v T, ttl time.Duration) {
	log := m.opts.logger.WithContext(ctx)

	data, err := codec.Marshal(v)
	if err != nil {
		log.Error("encode cache entry", "kind", m.kind, "error", err)
		return
	}
	if err := m.store.Set(ctx, key, data, ttl); err != nil {
		log.Warn("credential store write failed", "kind", m.kind, "error", err)
	}
}

func (m *memoizer[T]) release(ctx context.Context, lk Lock) {
	if err := lk.Release(); err != nil {
		m.opts.logger.WithContext(ctx).Warn("lock release failed", "lock", lk.Name(), "error", err)
	}
}
