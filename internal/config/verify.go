package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *Config) error {
	return errors.Join(
		verifyPrincipal(&cfg.Principal),
		verifyIdentity(&cfg.Identity),
		verifySession(&cfg.Session, &cfg.Resolver),
		verifyStore(&cfg.Store),
		verifyLock(&cfg.Lock, &cfg.Store),
		verifyLog(&cfg.Log),
		verifyAgent(&cfg.Agent),
	)
}

func verifyPrincipal(p *PrincipalSection) error {
	if p.Username == "" {
		return errors.New("principal.username is required")
	}
	realm, name, ok := strings.Cut(p.Username, domain.RealmSeparator)
	if !ok || strings.TrimSpace(realm) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("principal.username %q must be realm%sname", p.Username, domain.RealmSeparator)
	}
	if p.Secret != "" && p.SecretFile != "" {
		return errors.New("principal.secret and principal.secret_file are mutually exclusive")
	}
	return nil
}

func verifyIdentity(c *IdentitySection) error {
	if c.URL == "" {
		return errors.New("identity.url is required")
	}
	raw := c.URL
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("identity.url %q is not a valid url", c.URL)
	}
	if c.Timeout <= 0 {
		return errors.New("identity.timeout must be positive")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("identity.cert_file and identity.key_file must be set together")
	}
	return nil
}

func verifySession(s *SessionSection, r *ResolverSection) error {
	var errs []error
	if s.LockTimeout <= 0 {
		errs = append(errs, errors.New("session.lock_timeout must be positive"))
	}
	if s.TokenDuration < 0 {
		errs = append(errs, errors.New("session.token_duration must not be negative"))
	}
	if r.TTL <= 0 {
		errs = append(errs, errors.New("resolver.ttl must be positive"))
	}
	if r.LockTimeout <= 0 {
		errs = append(errs, errors.New("resolver.lock_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func verifyStore(s *StoreSection) error {
	switch s.Backend {
	case "memory":
	case "file", "badger":
		if s.Dir == "" {
			return fmt.Errorf("store.dir is required for the %s backend", s.Backend)
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, file, badger, postgres", s.Backend)
	}
	if s.Passphrase != "" && s.Backend != "file" && s.Backend != "badger" {
		return fmt.Errorf("store.passphrase is not supported by the %s backend", s.Backend)
	}
	switch s.Cipher {
	case "", "auto", "aes-gcm", "chacha20":
	default:
		return fmt.Errorf("store.cipher %q is not one of auto, aes-gcm, chacha20", s.Cipher)
	}
	return nil
}

func verifyLock(l *LockSection, s *StoreSection) error {
	switch l.Backend {
	case "local":
		if s.Backend == "file" || s.Backend == "postgres" {
			return fmt.Errorf("lock.backend local cannot guard the shared %s store", s.Backend)
		}
	case "file":
		if l.Dir == "" {
			return errors.New("lock.dir is required for the file backend")
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			return errors.New("lock.backend postgres needs store.postgres.dsn")
		}
	default:
		return fmt.Errorf("lock.backend %q is not one of local, file, postgres", l.Backend)
	}
	if l.PollInterval <= 0 {
		return errors.New("lock.poll_interval must be positive")
	}
	return nil
}

func verifyLog(l *LogSection) error {
	if _, err := logger.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logger.ParseFormat(l.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

func verifyAgent(a *AgentSection) error {
	if a.Listen != "" {
		if _, _, err := net.SplitHostPort(a.Listen); err != nil {
			return fmt.Errorf("agent.listen %q: %w", a.Listen, err)
		}
	}
	if a.MinBackoff <= 0 || a.MaxBackoff < a.MinBackoff {
		return errors.New("agent backoff must satisfy 0 < min_backoff <= max_backoff")
	}
	for _, entry := range a.Allow {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("agent.allow entry %q is neither an IP nor a CIDR", entry)
			}
		}
	}
	if a.RateLimit < 0 {
		return errors.New("agent.rate_limit must not be negative")
	}
	if a.RenewBefore < 0 {
		return errors.New("agent.renew_before must not be negative")
	}
	return nil
}
