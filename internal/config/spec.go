package config

import "time"

// Config is the root tokbroker configuration.
type Config struct {
	Principal PrincipalSection `koanf:"principal" yaml:"principal" json:"principal"`
	Identity  IdentitySection  `koanf:"identity" yaml:"identity" json:"identity"`
	Session   SessionSection   `koanf:"session" yaml:"session" json:"session"`
	Resolver  ResolverSection  `koanf:"resolver" yaml:"resolver" json:"resolver"`
	Store     StoreSection     `koanf:"store" yaml:"store" json:"store"`
	Lock      LockSection      `koanf:"lock" yaml:"lock" json:"lock"`
	Log       LogSection       `koanf:"log" yaml:"log" json:"log"`
	Agent     AgentSection     `koanf:"agent" yaml:"agent" json:"agent"`
}

// PrincipalSection names the identity that signs in.
type PrincipalSection struct {
	// Username has the form realm/name.
	Username string `koanf:"username" yaml:"username" json:"username"`
	// Secret is the password. Prefer SecretFile.
	Secret string `koanf:"secret" yaml:"secret,omitempty" json:"secret,omitempty"`
	// SecretFile holds the password; trailing newlines are ignored.
	SecretFile string `koanf:"secret_file" yaml:"secret_file,omitempty" json:"secret_file,omitempty"`
}

// IdentitySection configures the identity service client.
type IdentitySection struct {
	URL        string        `koanf:"url" yaml:"url" json:"url"`
	Timeout    time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`
	CAFile     string        `koanf:"ca_file" yaml:"ca_file,omitempty" json:"ca_file,omitempty"`
	CADir      string        `koanf:"ca_dir" yaml:"ca_dir,omitempty" json:"ca_dir,omitempty"`
	CertFile   string        `koanf:"cert_file" yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile    string        `koanf:"key_file" yaml:"key_file,omitempty" json:"key_file,omitempty"`
	ServerName string        `koanf:"server_name" yaml:"server_name,omitempty" json:"server_name,omitempty"`
}

// SessionSection configures token acquisition.
type SessionSection struct {
	// LockTimeout bounds the wait for the per-principal lock.
	LockTimeout time.Duration `koanf:"lock_timeout" yaml:"lock_timeout" json:"lock_timeout"`
	// TokenDuration is the requested token lifetime; zero asks for the
	// server default.
	TokenDuration time.Duration `koanf:"token_duration" yaml:"token_duration" json:"token_duration"`
}

// ResolverSection configures endpoint discovery.
type ResolverSection struct {
	TTL         time.Duration `koanf:"ttl" yaml:"ttl" json:"ttl"`
	LockTimeout time.Duration `koanf:"lock_timeout" yaml:"lock_timeout" json:"lock_timeout"`
	// Insecure selects plain http for resolved endpoints.
	Insecure bool `koanf:"insecure" yaml:"insecure" json:"insecure"`
}

// StoreSection configures the credential store.
type StoreSection struct {
	// Backend is memory, file, badger or postgres.
	Backend       string          `koanf:"backend" yaml:"backend" json:"backend"`
	Dir           string          `koanf:"dir" yaml:"dir" json:"dir"`
	Passphrase    string          `koanf:"passphrase" yaml:"passphrase,omitempty" json:"passphrase,omitempty"`
	Cipher        string          `koanf:"cipher" yaml:"cipher,omitempty" json:"cipher,omitempty"`
	PruneInterval time.Duration   `koanf:"prune_interval" yaml:"prune_interval" json:"prune_interval"`
	Badger        BadgerSection   `koanf:"badger" yaml:"badger" json:"badger"`
	Postgres      PostgresSection `koanf:"postgres" yaml:"postgres" json:"postgres"`
}

// BadgerSection tunes the badger backend.
type BadgerSection struct {
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval" json:"gc_interval"`
	CacheSize  int64         `koanf:"cache_size" yaml:"cache_size" json:"cache_size"`
	SyncWrites bool          `koanf:"sync_writes" yaml:"sync_writes" json:"sync_writes"`
}

// PostgresSection configures the postgres backend. The lock backend
// reuses it when set to postgres.
type PostgresSection struct {
	DSN         string `koanf:"dsn" yaml:"dsn" json:"dsn"`
	Table       string `koanf:"table" yaml:"table" json:"table"`
	MaxConns    int32  `koanf:"max_conns" yaml:"max_conns" json:"max_conns"`
	AutoMigrate bool   `koanf:"auto_migrate" yaml:"auto_migrate" json:"auto_migrate"`
}

// LockSection configures the cross-process lock.
type LockSection struct {
	// Backend is local, file or postgres.
	Backend      string        `koanf:"backend" yaml:"backend" json:"backend"`
	Dir          string        `koanf:"dir" yaml:"dir" json:"dir"`
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level" json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"`
}

// AgentSection configures tokbroker-agent.
type AgentSection struct {
	// Listen is the address serving /metrics and /healthz; empty disables it.
	Listen string `koanf:"listen" yaml:"listen" json:"listen"`
	// Allow restricts admin clients to these IPs or CIDR blocks.
	Allow []string `koanf:"allow" yaml:"allow,omitempty" json:"allow,omitempty"`
	// RateLimit caps admin requests per second; zero disables it.
	RateLimit       float64       `koanf:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RenewBefore     time.Duration `koanf:"renew_before" yaml:"renew_before" json:"renew_before"`
	MinBackoff      time.Duration `koanf:"min_backoff" yaml:"min_backoff" json:"min_backoff"`
	MaxBackoff      time.Duration `koanf:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// WatchConfig re-applies the log level when the config file changes.
	WatchConfig bool `koanf:"watch_config" yaml:"watch_config" json:"watch_config"`
	// SignOutOnExit signs the principal out when the agent stops.
	SignOutOnExit bool `koanf:"signout_on_exit" yaml:"signout_on_exit" json:"signout_on_exit"`
}
