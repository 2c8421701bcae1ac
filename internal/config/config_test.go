package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "INR", cfg.Reporting)
	assert.Equal(t, 100, cfg.Ledger.Limit)
	assert.Equal(t, 15*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, "$.conversion_rate", cfg.Rates.RatePath)
	assert.False(t, cfg.LedgerEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tripledger.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 9090
reporting_currency: usd
ledger:
  token: file-token
  timeout: 3s
rates:
  api_key: abc
`), 0o644)
	require.NoError(t, err)

	t.Setenv("TRIPLEDGER_LEDGER_TOKEN", "env-token")
	t.Setenv("TRIPLEDGER_DATABASE_PATH", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "USD", cfg.Reporting)
	assert.Equal(t, "env-token", cfg.Ledger.Token)
	assert.Equal(t, 3*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, "abc", cfg.Rates.APIKey)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.True(t, cfg.LedgerEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("unknown reporting currency", func(t *testing.T) {
		t.Setenv("TRIPLEDGER_REPORTING_CURRENCY", "XYZ1")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("TRIPLEDGER_SERVER_PORT", "70000")
		_, err := Load("")
		assert.Error(t, err)
	})
}
