// ABOUTME: Tests for YAML config loading, env expansion, and validation
// ABOUTME: Defaults must survive partial config files

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
keystore:
  cache_path: /tmp/test/signer.pub
  fetch_url: https://keys.example.org/opsgate.pub
replay:
  ledger_path: /tmp/test/consumed.log
audit:
  enabled: true
  database_path: /tmp/test/audit.db
exec:
  timeout: 45s
panel:
  bin: /usr/sbin/plesk
dns:
  service_bin: /bin/systemctl
  service: named
  control_bin: /usr/sbin/rndc
  zone_catalogue: /etc/named.conf
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test/signer.pub", cfg.Keystore.CachePath)
	assert.Equal(t, "https://keys.example.org/opsgate.pub", cfg.Keystore.FetchURL)
	assert.Equal(t, 45*time.Second, cfg.Exec.Timeout)
	assert.Equal(t, "/usr/sbin/plesk", cfg.Panel.Bin)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
keystore:
  fetch_url: https://keys.example.org/opsgate.pub
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/opsgate/signer.pub", cfg.Keystore.CachePath)
	assert.Equal(t, 30*time.Second, cfg.Exec.Timeout)
	assert.Equal(t, "plesk", cfg.Panel.Bin)
	assert.Equal(t, "rndc", cfg.DNS.ControlBin)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("OPSGATE_TEST_KEY_URL", "https://secret.example.org/key")

	path := writeConfig(t, `
keystore:
  fetch_url: ${OPSGATE_TEST_KEY_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://secret.example.org/key", cfg.Keystore.FetchURL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
exec:
  timeout: soon
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing exec.timeout")
}

func TestLoad_NegativeDuration(t *testing.T) {
	path := writeConfig(t, `
exec:
  timeout: -5s
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "must be positive")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty cache path", func(c *Config) { c.Keystore.CachePath = "" }},
		{"empty ledger path", func(c *Config) { c.Replay.LedgerPath = "" }},
		{"audit without db path", func(c *Config) { c.Audit.DatabasePath = "" }},
		{"empty panel bin", func(c *Config) { c.Panel.Bin = "" }},
		{"empty dns control bin", func(c *Config) { c.DNS.ControlBin = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
