package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values.
const (
	DefaultIdentityTimeout = 30 * time.Second
	DefaultLockTimeout     = 30 * time.Second
	DefaultResolverTTL     = 30 * 24 * time.Hour
	DefaultPruneInterval   = 10 * time.Minute
	DefaultPollInterval    = 50 * time.Millisecond

	DefaultStoreBackend = "file"
	DefaultLockBackend  = "file"
	DefaultTable        = "tokbroker_credentials"

	DefaultBadgerGCInterval = 10 * time.Minute
	DefaultBadgerCacheSize  = 16 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultAgentListen     = "127.0.0.1:9464"
	DefaultAgentRateLimit  = 20
	DefaultRenewBefore     = 5 * time.Minute
	DefaultMinBackoff      = time.Second
	DefaultMaxBackoff      = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultDir returns the per-user cache directory shared by every
// tokbroker process of that user.
func DefaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tokbroker")
	}
	return filepath.Join(os.TempDir(), "tokbroker")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tokbroker", "config.yaml")
	}
	return "tokbroker.yaml"
}

// Default returns the default configuration.
func Default() *Config {
	dir := DefaultDir()
	return &Config{
		Identity: IdentitySection{
			Timeout: DefaultIdentityTimeout,
		},
		Session: SessionSection{
			LockTimeout: DefaultLockTimeout,
		},
		Resolver: ResolverSection{
			TTL:         DefaultResolverTTL,
			LockTimeout: DefaultLockTimeout,
		},
		Store: StoreSection{
			Backend:       DefaultStoreBackend,
			Dir:           filepath.Join(dir, "store"),
			PruneInterval: DefaultPruneInterval,
			Badger: BadgerSection{
				GCInterval: DefaultBadgerGCInterval,
				CacheSize:  DefaultBadgerCacheSize,
				SyncWrites: true,
			},
			Postgres: PostgresSection{
				Table:       DefaultTable,
				AutoMigrate: true,
			},
		},
		Lock: LockSection{
			Backend:      DefaultLockBackend,
			Dir:          filepath.Join(dir, "locks"),
			PollInterval: DefaultPollInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Agent: AgentSection{
			Listen:          DefaultAgentListen,
			RateLimit:       DefaultAgentRateLimit,
			RenewBefore:     DefaultRenewBefore,
			MinBackoff:      DefaultMinBackoff,
			MaxBackoff:      DefaultMaxBackoff,
			ShutdownTimeout: DefaultShutdownTimeout,
			WatchConfig:     true,
		},
	}
}
