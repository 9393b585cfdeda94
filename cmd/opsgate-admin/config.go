// ABOUTME: Configuration loading for the opsgate-admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Signing SigningConfig `toml:"signing"`
	Token   TokenConfig   `toml:"token"`
	Gateway GatewayConfig `toml:"gateway"`
}

type SigningConfig struct {
	KeyPath       string `toml:"key_path"`
	PublicKeyPath string `toml:"public_key_path"`
}

type TokenConfig struct {
	TTL    time.Duration `toml:"-"`
	TTLRaw string        `toml:"ttl"`
}

type GatewayConfig struct {
	LedgerPath string `toml:"ledger_path"`
	AuditDB    string `toml:"audit_db"`
}

// configPath returns the admin config location.
// Priority: OPSGATE_ADMIN_CONFIG > XDG_CONFIG_HOME/opsgate/admin.toml > ~/.config/opsgate/admin.toml
func configPath() string {
	if envPath := os.Getenv("OPSGATE_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "opsgate", "admin.toml")
}

// defaultConfig returns the config used when no file exists.
func defaultConfig() *Config {
	base := filepath.Dir(configPath())
	return &Config{
		Signing: SigningConfig{
			KeyPath:       filepath.Join(base, "signing.key"),
			PublicKeyPath: filepath.Join(base, "signing.pub"),
		},
		Token: TokenConfig{
			TTL: 5 * time.Minute,
		},
		Gateway: GatewayConfig{
			LedgerPath: "/var/lib/opsgate/consumed.log",
			AuditDB:    "/var/lib/opsgate/audit.db",
		},
	}
}

// loadConfig reads the admin config, expanding ${VAR} environment variables.
// A missing file yields the defaults.
func loadConfig() (*Config, error) {
	path := configPath()
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Token.TTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Token.TTLRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing token.ttl %q: %w", cfg.Token.TTLRaw, err)
		}
		cfg.Token.TTL = ttl
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
