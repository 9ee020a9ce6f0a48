package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spaolacci/murmur3"

	"github.com/yndnr/tokbroker/internal/core/service"
)

// advisoryNamespace keeps our keys apart from other advisory lock users
// sharing the database.
const advisoryNamespace = "tokbroker:"

// AdvisoryLocker takes PostgreSQL session advisory locks. Each held lock
// pins one pooled connection until Release.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	opts options
}

// NewAdvisoryLocker creates a locker on pool.
func NewAdvisoryLocker(pool *pgxpool.Pool, opts ...Option) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, opts: buildOptions(opts)}
}

// AdvisoryKey maps a lock name to the bigint key used by pg_advisory_lock.
func AdvisoryKey(name string) int64 {
	return int64(murmur3.Sum64([]byte(advisoryNamespace + name)))
}

// Acquire implements service.Locker. Every attempt borrows a pooled
// connection within the wait bound and returns it unless the lock was
// taken, so waiters never starve callers of unrelated locks.
func (l *AdvisoryLocker) Acquire(ctx context.Context, name string, wait time.Duration) (service.Lock, error) {
	key := AdvisoryKey(name)
	start := time.Now()

	var held *pgxpool.Conn
	err := retry(ctx, name, wait, l.opts.poll, func(c context.Context) (bool, error) {
		conn, err := l.pool.Acquire(c)
		if err != nil {
			return false, fmt.Errorf("acquire connection: %w", err)
		}
		var ok bool
		if err := conn.QueryRow(c, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
			// The lock may have been granted before the error; closing the
			// session drops it.
			discard(conn)
			return false, err
		}
		if !ok {
			conn.Release()
			return false, nil
		}
		held = conn
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	l.opts.log.Debug("advisory lock acquired",
		"lock", name,
		"key", key,
		"waited", time.Since(start))
	return &advisoryLock{name: name, key: key, conn: held, l: l}, nil
}

// discard closes a pooled connection instead of returning it to the pool.
func discard(conn *pgxpool.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Hijack().Close(ctx)
}

type advisoryLock struct {
	name string
	key  int64
	conn *pgxpool.Conn
	l    *AdvisoryLocker

	once sync.Once
	err  error
}

func (a *advisoryLock) Name() string { return a.name }

func (a *advisoryLock) Release() error {
	a.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var unlocked bool
		err := a.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, a.key).Scan(&unlocked)
		if err == nil && !unlocked {
			err = errors.New("advisory lock was not held")
		}
		if err != nil {
			// Closing the session drops every advisory lock it holds.
			a.err = errors.Join(fmt.Errorf("lock: release %q: %w", a.name, err), discard(a.conn))
			return
		}
		a.conn.Release()
		a.l.opts.log.Debug("advisory lock released", "lock", a.name)
	})
	return a.err
}
