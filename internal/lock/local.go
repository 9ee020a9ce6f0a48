package lock

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/pkg/cmap"
)

// LocalLocker serializes goroutines of one process. Each name maps to a
// one-slot channel that is kept for the life of the locker.
type LocalLocker struct {
	slots *cmap.Map[chan struct{}]
	opts  options
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker(opts ...Option) *LocalLocker {
	return &LocalLocker{
		slots: cmap.New[chan struct{}](),
		opts:  buildOptions(opts),
	}
}

// Acquire implements service.Locker.
func (l *LocalLocker) Acquire(ctx context.Context, name string, wait time.Duration) (service.Lock, error) {
	slot, _ := l.slots.GetOrSet(name, make(chan struct{}, 1))

	select {
	case slot <- struct{}{}:
		return &localLock{name: name, slot: slot}, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wait <= 0 {
		return nil, domain.ErrLockConflict.WithDetailsf("lock %q is held", name)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return &localLock{name: name, slot: slot}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domain.ErrLockConflict.WithDetailsf("lock %q not acquired within %s", name, wait)
	}
}

type localLock struct {
	name string
	slot chan struct{}
	once sync.Once
}

func (l *localLock) Name() string { return l.name }

func (l *localLock) Release() error {
	l.once.Do(func() { <-l.slot })
	return nil
}
