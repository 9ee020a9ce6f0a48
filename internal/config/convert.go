package config

import (
	"os"

	"github.com/yndnr/tokbroker/internal/infra/tlsroots"
	"github.com/yndnr/tokbroker/internal/lock"
	"github.com/yndnr/tokbroker/internal/storage"
	"github.com/yndnr/tokbroker/internal/storage/pgstore"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// StorageConfig returns the credential store configuration.
func (c *Config) StorageConfig() storage.Config {
	sc := storage.DefaultConfig(c.Store.Dir)
	sc.Backend = c.Store.Backend
	sc.Passphrase = c.Store.Passphrase
	sc.Cipher = c.Store.Cipher
	sc.PruneInterval = c.Store.PruneInterval

	sc.Badger.GCInterval = c.Store.Badger.GCInterval
	sc.Badger.SyncWrites = c.Store.Badger.SyncWrites
	if c.Store.Badger.CacheSize > 0 {
		sc.Badger.CacheSize = c.Store.Badger.CacheSize
	}

	sc.Postgres = c.PostgresConfig()
	return sc
}

// PostgresConfig returns the postgres connection settings shared by the
// store and the lock backends.
func (c *Config) PostgresConfig() pgstore.Config {
	pc := pgstore.DefaultConfig()
	pc.DSN = c.Store.Postgres.DSN
	pc.MaxConns = c.Store.Postgres.MaxConns
	pc.AutoMigrate = c.Store.Postgres.AutoMigrate
	if c.Store.Postgres.Table != "" {
		pc.Table = c.Store.Postgres.Table
	}
	return pc
}

// LockConfig returns the lock backend configuration.
func (c *Config) LockConfig() lock.Config {
	return lock.Config{
		Backend:      c.Lock.Backend,
		Dir:          c.Lock.Dir,
		PollInterval: c.Lock.PollInterval,
	}
}

// LoggerConfig returns the logger configuration writing to stderr.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Output: os.Stderr,
	}
}

// TLSOptions returns the identity service TLS settings.
func (c *Config) TLSOptions() tlsroots.Options {
	return tlsroots.Options{
		CAFile:     c.Identity.CAFile,
		CADir:      c.Identity.CADir,
		CertFile:   c.Identity.CertFile,
		KeyFile:    c.Identity.KeyFile,
		ServerName: c.Identity.ServerName,
	}
}
