package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/tokbroker/internal/storage/pgstore"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config selects and tunes a credential store backend.
type Config struct {
	// Backend is one of memory, file, badger or postgres.
	// Default: file
	Backend string

	// Dir is the data directory for the file and badger backends.
	Dir string

	// Passphrase seals file entries when non-empty.
	Passphrase string

	// Cipher selects the AEAD for sealed entries ("", "aes-gcm", "chacha20").
	Cipher string

	// PruneInterval is how often expired entries are removed.
	// Zero disables background pruning.
	// Default: 10m
	PruneInterval time.Duration

	// Badger-specific configuration
	Badger BadgerConfig

	// Postgres-specific configuration
	Postgres pgstore.Config
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// InMemory keeps everything in RAM. Dir is ignored.
	InMemory bool

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites fsyncs after each write.
	// Default: true
	SyncWrites bool

	// EncryptionKey enables Badger's native at-rest encryption when set.
	// Open derives it from Config.Passphrase.
	EncryptionKey []byte
}

// DefaultConfig returns the default storage configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Backend:       BackendFile,
		Dir:           dir,
		PruneInterval: 10 * time.Minute,
		Badger:        DefaultBadgerConfig(),
		Postgres:      pgstore.DefaultConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        16 << 20, // 16MB
		ValueLogFileSize: 64 << 20, // 64MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendMemory:
		return nil
	case BackendFile:
		if c.Dir == "" {
			return fmt.Errorf("storage: dir is required for the %s backend", c.Backend)
		}
		return nil
	case BackendBadger:
		if c.Dir == "" && !c.Badger.InMemory {
			return fmt.Errorf("storage: dir is required for the %s backend", c.Backend)
		}
		if c.Badger.GCThreshold <= 0 || c.Badger.GCThreshold >= 1 {
			return fmt.Errorf("storage: badger gc threshold must be in (0, 1), got %v", c.Badger.GCThreshold)
		}
		return nil
	case BackendPostgres:
		return c.Postgres.Validate()
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
}
