package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// DefaultTable is the credential table name.
const DefaultTable = "tokbroker_credentials"

var validTable = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config configures the Postgres backend.
type Config struct {
	// DSN is a libpq connection string or URL.
	DSN string

	// Table is the credential table name.
	// Default: tokbroker_credentials
	Table string

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32

	// ConnectTimeout bounds the initial connectivity check.
	// Default: 5s
	ConnectTimeout time.Duration

	// AutoMigrate creates the table when missing.
	// Default: true
	AutoMigrate bool
}

// DefaultConfig returns the default Postgres configuration.
func DefaultConfig() Config {
	return Config{
		Table:          DefaultTable,
		ConnectTimeout: 5 * time.Second,
		AutoMigrate:    true,
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("pgstore: dsn is required")
	}
	if c.Table != "" && !validTable.MatchString(c.Table) {
		return fmt.Errorf("pgstore: invalid table name %q", c.Table)
	}
	return nil
}

// NewPool builds a pgxpool from cfg and checks connectivity.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: create pool: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// Store is a CredentialStore backed by a PostgreSQL table.
type Store struct {
	pool      *pgxpool.Pool
	ownsPool  bool
	table     string
	now       func() time.Time
	log       logger.Logger
	selectSQL string
	upsertSQL string
	deleteSQL string
	pruneSQL  string
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces time.Now for expiry comparisons.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTable overrides the table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// New wraps an existing pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("pgstore: pool is nil")
	}
	s := &Store{
		pool:  pool,
		table: DefaultTable,
		now:   time.Now,
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !validTable.MatchString(s.table) {
		return nil, domain.ErrInvalidArgument.WithDetailsf("pgstore: invalid table name %q", s.table)
	}

	t := pgx.Identifier{s.table}.Sanitize()
	s.selectSQL = `SELECT value FROM ` + t + ` WHERE key = $1 AND expires_at > $2`
	s.upsertSQL = `INSERT INTO ` + t + ` (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	s.deleteSQL = `DELETE FROM ` + t + ` WHERE key = $1`
	s.pruneSQL = `DELETE FROM ` + t + ` WHERE expires_at <= $1`
	return s, nil
}

// Open creates a pool from cfg and returns a Store that closes it.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := New(pool, append([]Option{WithTable(cfg.Table)}, opts...)...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.ownsPool = true

	if cfg.AutoMigrate {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates the credential table and its expiry index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	t := pgx.Identifier{s.table}.Sanitize()
	idx := pgx.Identifier{s.table + "_expires_at_idx"}.Sanitize()
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+t+` (
			key        text PRIMARY KEY,
			value      bytea NOT NULL,
			expires_at timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS `+idx+` ON `+t+` (expires_at)
	`)
	if err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

// Get returns the unexpired value under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, s.selectSQL, key, s.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: get: %w", err)
	}
	return value, nil
}

// Set upserts value under key, expiring ttl from now.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return domain.ErrInvalidArgument.WithDetails("key is empty")
	}
	if ttl <= 0 {
		return domain.ErrInvalidArgument.WithDetailsf("ttl must be positive, got %s", ttl)
	}
	if _, err := s.pool.Exec(ctx, s.upsertSQL, key, value, s.now().Add(ttl)); err != nil {
		return fmt.Errorf("pgstore: set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, s.deleteSQL, key); err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	return nil
}

// Has reports whether key holds an unexpired value.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, s.pruneSQL, s.now())
	if err != nil {
		return 0, fmt.Errorf("pgstore: prune: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.log.Debug("pruned expired credentials", "table", s.table, "count", n)
	}
	return int(tag.RowsAffected()), nil
}

// Close closes the pool when the Store created it.
func (s *Store) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
