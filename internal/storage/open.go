package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/yndnr/tokbroker/internal/storage/filestore"
	"github.com/yndnr/tokbroker/internal/storage/memory"
	"github.com/yndnr/tokbroker/internal/storage/pgstore"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
	"github.com/yndnr/tokbroker/internal/telemetry/metric"
	"github.com/yndnr/tokbroker/pkg/crypto/adaptive"
)

// Store is a credential store that owns resources.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// Pruner is implemented by backends that need expired entries removed.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Open builds the store selected by cfg. metrics may be nil.
func Open(ctx context.Context, cfg Config, log logger.Logger, metrics *metric.Registry) (Store, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.With("component", "storage", "backend", cfg.Backend)

	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		s = memory.New()
	case BackendFile:
		s, err = openFile(cfg, log)
	case BackendBadger:
		var bs *BadgerStore
		bs, err = openBadger(cfg, log)
		if err == nil && metrics != nil {
			bs.RegisterMetrics(metrics.Registerer())
		}
		s = bs
	case BackendPostgres:
		s, err = pgstore.Open(ctx, cfg.Postgres, pgstore.WithLogger(log))
	}
	if err != nil {
		return nil, err
	}

	if p, ok := s.(Pruner); ok && cfg.PruneInterval > 0 {
		s = newPruning(s, p, cfg.PruneInterval, log)
	}
	log.Info("credential store opened", "dir", cfg.Dir, "sealed", cfg.Passphrase != "")
	return s, nil
}

func openFile(cfg Config, log logger.Logger) (*filestore.Store, error) {
	fsys := afero.NewOsFs()
	opts := []filestore.Option{filestore.WithFs(fsys), filestore.WithLogger(log)}
	if cfg.Passphrase != "" {
		if err := fsys.MkdirAll(cfg.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("storage: create dir: %w", err)
		}
		c, err := filestore.CipherFromPassphrase(fsys, cfg.Dir, cfg.Passphrase, cfg.Cipher)
		if err != nil {
			return nil, err
		}
		opts = append(opts, filestore.WithCipher(c))
	}
	return filestore.New(cfg.Dir, opts...)
}

func openBadger(cfg Config, log logger.Logger) (*BadgerStore, error) {
	if cfg.Passphrase != "" && !cfg.Badger.InMemory {
		if len(cfg.Passphrase) < adaptive.MinPassphraseLength {
			return nil, fmt.Errorf("storage: passphrase must be at least %d characters", adaptive.MinPassphraseLength)
		}
		salt, err := filestore.LoadOrCreateSalt(afero.NewOsFs(), cfg.Dir)
		if err != nil {
			return nil, err
		}
		key, err := adaptive.SubKey(adaptive.DeriveKey([]byte(cfg.Passphrase), salt), "badger")
		if err != nil {
			return nil, err
		}
		cfg.Badger.EncryptionKey = key
	}
	return NewBadgerStore(cfg.Dir, cfg.Badger, log)
}

// pruning runs Prune on a timer until Close.
type pruning struct {
	Store
	pruner   Pruner
	interval time.Duration
	log      logger.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

func newPruning(s Store, p Pruner, interval time.Duration, log logger.Logger) *pruning {
	ps := &pruning{
		Store:    s,
		pruner:   p,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go ps.loop()
	return ps
}

func (p *pruning) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if _, err := p.pruner.Prune(ctx); err != nil {
				p.log.Warn("prune failed", "error", err)
			}
			cancel()
		case <-p.stopCh:
			return
		}
	}
}

// Prune runs one prune pass immediately.
func (p *pruning) Prune(ctx context.Context) (int, error) {
	return p.pruner.Prune(ctx)
}

func (p *pruning) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		<-p.doneCh
	})
	return p.Store.Close()
}
