package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 14*24*time.Hour, cfg.LoanPeriod())

	rate, err := cfg.FineRate()
	require.NoError(t, err)
	assert.Equal(t, model.Money(50), rate)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
database:
  path: /var/lib/knjiznica/db.sqlite3
circulation:
  loan_days: 21
  fine_per_day: "10"
  currency: INR
  sweep_interval: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "Admin", cfg.Server.AdminUser, "unset keys keep their default")
	assert.Equal(t, "/var/lib/knjiznica/db.sqlite3", cfg.Database.Path)
	assert.Equal(t, 21*24*time.Hour, cfg.LoanPeriod())

	rate, err := cfg.FineRate()
	require.NoError(t, err)
	assert.Equal(t, model.Money(1000), rate)

	interval, err := cfg.SweepInterval()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, interval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"zero loan days": "circulation:\n  loan_days: 0\n",
		"bad fine rate":  "circulation:\n  fine_per_day: ten\n",
		"bad currency":   "circulation:\n  currency: XXXX\n",
		"bad interval":   "circulation:\n  sweep_interval: soon\n",
		"malformed yaml": "circulation: [\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
