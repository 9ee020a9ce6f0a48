//go:build !unix

package lock

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/tokbroker/internal/core/service"
)

// FileLocker is unavailable on this platform.
type FileLocker struct{}

// NewFileLocker always fails on this platform.
func NewFileLocker(string, ...Option) (*FileLocker, error) {
	return nil, errors.New("lock: file locks are not supported on this platform")
}

// Acquire implements service.Locker.
func (*FileLocker) Acquire(context.Context, string, time.Duration) (service.Lock, error) {
	return nil, errors.New("lock: file locks are not supported on this platform")
}
