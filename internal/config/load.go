package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/yndnr/tokbroker/internal/infra/confloader"
)

// Load builds the configuration from Default, the YAML file at path, the
// TOKBROKER_ environment and overrides, in increasing priority. An empty
// path reads DefaultConfigPath when it exists. overrides is keyed by
// dotted koanf paths such as "log.level". Verify is not called.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()

	file := confloader.WithConfigFile(path)
	if path == "" {
		file = confloader.WithOptionalConfigFile(DefaultConfigPath())
	}
	l := confloader.NewLoader(file, confloader.WithOverrides(overrides))
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveSecret returns the principal secret, reading SecretFile when set.
func (p PrincipalSection) ResolveSecret() (string, error) {
	if p.SecretFile == "" {
		return p.Secret, nil
	}
	data, err := os.ReadFile(p.SecretFile)
	if err != nil {
		return "", fmt.Errorf("read principal.secret_file: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
