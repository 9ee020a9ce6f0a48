//go:build unix

package lock

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// FileLocker takes flock(2) locks on files under a shared directory.
// Lock files are never removed; unlinking a file another process has open
// would let two holders lock different inodes under the same name.
type FileLocker struct {
	dir  string
	opts options
}

// NewFileLocker creates the lock directory if needed.
func NewFileLocker(dir string, opts ...Option) (*FileLocker, error) {
	if dir == "" {
		return nil, fmt.Errorf("lock: dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}
	return &FileLocker{dir: dir, opts: buildOptions(opts)}, nil
}

// Path returns the lock file used for name.
func (l *FileLocker) Path(name string) string {
	sum := blake3.Sum256([]byte(name))
	return filepath.Join(l.dir, hex.EncodeToString(sum[:16])+".lock")
}

// Acquire implements service.Locker.
func (l *FileLocker) Acquire(ctx context.Context, name string, wait time.Duration) (service.Lock, error) {
	path := l.Path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}

	start := time.Now()
	err = retry(ctx, name, wait, l.opts.poll, func(context.Context) (bool, error) {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	holder := ulid.Make().String()
	if err := writeHolder(f, holder, name); err != nil {
		l.opts.log.Debug("write lock holder failed", "path", path, "error", err)
	}
	l.opts.log.Debug("lock acquired",
		"lock", name,
		"holder", holder,
		"waited", time.Since(start))

	return &fileLock{name: name, holder: holder, f: f, log: l.opts.log}, nil
}

// writeHolder records who holds the lock for operators inspecting the
// directory. The content is informational only.
func writeHolder(f *os.File, holder, name string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(fmt.Sprintf("holder=%s pid=%d lock=%s acquired=%s\n",
		holder, os.Getpid(), name, time.Now().UTC().Format(time.RFC3339))), 0)
	return err
}

type fileLock struct {
	name   string
	holder string
	f      *os.File
	log    logger.Logger

	once sync.Once
	err  error
}

func (l *fileLock) Name() string { return l.name }

// Holder returns the unique id written into the lock file.
func (l *fileLock) Holder() string { return l.holder }

func (l *fileLock) Release() error {
	l.once.Do(func() {
		unlockErr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
		closeErr := l.f.Close()
		l.err = errors.Join(unlockErr, closeErr)
		l.log.Debug("lock released", "lock", l.name, "holder", l.holder)
	})
	return l.err
}
