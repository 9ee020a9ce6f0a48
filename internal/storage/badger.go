package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// expiryHeaderSize prefixes every value with its expiry in unix nanoseconds.
// Badger's own TTL has one second resolution and follows the wall clock; the
// header gives reads exact expiry against the store's clock.
const expiryHeaderSize = 8

// BadgerStore is a CredentialStore backed by an embedded Badger database.
// Badger takes an exclusive directory lock, so only one process can open
// a given directory.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	log    logger.Logger
	now    func() time.Time
	closed atomic.Bool

	lastGCTime      atomic.Int64 // Unix milliseconds
	metricsGCRuns   prometheus.Counter
	registerMetrics sync.Once

	stopCh chan struct{}
	doneCh chan struct{}
}

// BadgerOption configures a BadgerStore.
type BadgerOption func(*BadgerStore)

// WithBadgerClock replaces time.Now for expiry checks.
func WithBadgerClock(now func() time.Time) BadgerOption {
	return func(s *BadgerStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBadgerStore opens a Badger database under dir.
func NewBadgerStore(dir string, cfg BadgerConfig, log logger.Logger, opts ...BadgerOption) (*BadgerStore, error) {
	if dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if log == nil {
		log = logger.Default()
	}

	bopts := badger.DefaultOptions(dir)
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{logger: log.With("component", "badger")}
	if cfg.CacheSize > 0 {
		bopts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		bopts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		bopts.NumMemtables = cfg.NumMemtables
	}
	bopts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if len(cfg.EncryptionKey) > 0 {
		// Encrypted tables require an index cache.
		bopts = bopts.WithEncryptionKey(cfg.EncryptionKey).WithIndexCacheSize(16 << 20)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	s.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokbroker",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Completed Badger value log GC passes",
	})
	for _, opt := range opts {
		opt(s)
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneCh)
	}

	log.Info("badger store opened",
		"dir", dir,
		"in_memory", cfg.InMemory,
		"encrypted", len(cfg.EncryptionKey) > 0,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Get returns the value stored under key.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrCacheMiss
			}
			return err
		}

		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) < expiryHeaderSize {
			return fmt.Errorf("badger: entry %q is truncated", key)
		}
		expiresAt := time.Unix(0, int64(binary.BigEndian.Uint64(raw)))
		if !expiresAt.After(s.now()) {
			return domain.ErrCacheMiss
		}
		value = raw[expiryHeaderSize:]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key for ttl.
func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return domain.ErrInvalidArgument.WithDetails("key is empty")
	}
	if ttl <= 0 {
		return domain.ErrInvalidArgument.WithDetailsf("ttl must be positive, got %s", ttl)
	}

	raw := make([]byte, expiryHeaderSize+len(value))
	binary.BigEndian.PutUint64(raw, uint64(s.now().Add(ttl).UnixNano()))
	copy(raw[expiryHeaderSize:], value)

	// Badger's TTL lets compaction drop the entry; it rounds to whole
	// seconds so one extra second keeps it from vanishing early.
	e := badger.NewEntry([]byte(key), raw).WithTTL(ttl + time.Second)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

// Delete removes key.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Has reports whether key holds an unexpired value.
func (s *BadgerStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GC runs value log garbage collection until nothing more can be rewritten.
// It returns the number of value log files rewritten.
func (s *BadgerStore) GC(ctx context.Context) (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	startTime := time.Now()

	rewritten := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return rewritten, fmt.Errorf("gc: %w", err)
		}
		rewritten++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.metricsGCRuns.Inc()

	s.log.Debug("badger gc completed",
		"files_rewritten", rewritten,
		"elapsed", time.Since(startTime))

	return rewritten, nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	s.log.Info("badger store closed")
	return nil
}

// RegisterMetrics registers Badger size and GC metrics with reg.
// It returns the store for method chaining.
func (s *BadgerStore) RegisterMetrics(reg prometheus.Registerer) *BadgerStore {
	s.registerMetrics.Do(func() {
		reg.MustRegister(
			s.metricsGCRuns,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "tokbroker",
				Subsystem: "badger",
				Name:      "lsm_size_bytes",
				Help:      "Badger LSM tree size in bytes",
			}, func() float64 {
				lsm, _ := s.db.Size()
				return float64(lsm)
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "tokbroker",
				Subsystem: "badger",
				Name:      "value_log_size_bytes",
				Help:      "Badger value log size in bytes",
			}, func() float64 {
				_, vlog := s.db.Size()
				return float64(vlog)
			}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "tokbroker",
				Subsystem: "badger",
				Name:      "last_gc_timestamp_seconds",
				Help:      "Unix timestamp of the last Badger GC run",
			}, func() float64 {
				return float64(s.lastGCTime.Load()) / 1000.0
			}),
		)
	})
	return s
}

// gcLoop runs periodic garbage collection.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.log.Error("badger gc failed", "error", err)
			}
			cancel()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
// Badger is chatty at info level, so info goes to debug.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
