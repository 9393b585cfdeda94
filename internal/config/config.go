// ABOUTME: Configuration loading and parsing for opsgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete opsgate configuration.
type Config struct {
	Keystore KeystoreConfig `yaml:"keystore"`
	Replay   ReplayConfig   `yaml:"replay"`
	Audit    AuditConfig    `yaml:"audit"`
	Exec     ExecConfig     `yaml:"exec"`
	Panel    PanelConfig    `yaml:"panel"`
	DNS      DNSConfig      `yaml:"dns"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// KeystoreConfig holds verification-key resolution settings.
type KeystoreConfig struct {
	CachePath string `yaml:"cache_path"`
	FetchURL  string `yaml:"fetch_url"`
}

// ReplayConfig holds the consumed-token ledger location.
type ReplayConfig struct {
	LedgerPath string `yaml:"ledger_path"`
}

// AuditConfig holds the invocation journal settings.
type AuditConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// ExecConfig holds subprocess execution settings.
type ExecConfig struct {
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// PanelConfig holds the hosting-panel CLI surface.
type PanelConfig struct {
	Bin string `yaml:"bin"`
}

// DNSConfig holds the name-server maintenance surface.
type DNSConfig struct {
	ServiceBin    string `yaml:"service_bin"`
	Service       string `yaml:"service"`
	ControlBin    string `yaml:"control_bin"`
	ZoneCatalogue string `yaml:"zone_catalogue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Keystore: KeystoreConfig{
			CachePath: "/var/lib/opsgate/signer.pub",
		},
		Replay: ReplayConfig{
			LedgerPath: "/var/lib/opsgate/consumed.log",
		},
		Audit: AuditConfig{
			Enabled:      true,
			DatabasePath: "/var/lib/opsgate/audit.db",
		},
		Exec: ExecConfig{
			Timeout: 30 * time.Second,
		},
		Panel: PanelConfig{
			Bin: "plesk",
		},
		DNS: DNSConfig{
			ServiceBin:    "systemctl",
			Service:       "named",
			ControlBin:    "rndc",
			ZoneCatalogue: "/etc/named.conf",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config merged over the defaults. Environment variables in the format
// ${VAR_NAME} are expanded. Duration strings are parsed into time.Duration
// values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Keystore.CachePath == "" {
		return fmt.Errorf("keystore.cache_path is required")
	}
	if c.Replay.LedgerPath == "" {
		return fmt.Errorf("replay.ledger_path is required")
	}
	if c.Audit.Enabled && c.Audit.DatabasePath == "" {
		return fmt.Errorf("audit.database_path is required when audit is enabled")
	}
	if c.Panel.Bin == "" {
		return fmt.Errorf("panel.bin is required")
	}
	if c.DNS.ServiceBin == "" || c.DNS.Service == "" || c.DNS.ControlBin == "" {
		return fmt.Errorf("dns.service_bin, dns.service, and dns.control_bin are required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Exec.TimeoutRaw != "" {
		timeout, err := time.ParseDuration(cfg.Exec.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing exec.timeout %q: %w", cfg.Exec.TimeoutRaw, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("exec.timeout must be positive, got %s", timeout)
		}
		cfg.Exec.Timeout = timeout
	}
	return nil
}
