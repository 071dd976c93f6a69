package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EODLEDGER_DATA_DIR", dir)
	t.Setenv("EODLEDGER_EXTRACT_DIR", "")
	t.Setenv("EODLEDGER_ACCOUNTS", "")
	t.Setenv("EODLEDGER_TIMEZONE", "")
	t.Setenv("EODLEDGER_ARCHIVE_BUCKET", "")
	t.Setenv("GO_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "extracts"), cfg.ExtractDir)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.DatabasePath())
	assert.Equal(t, 8011, cfg.Port)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 120*time.Second, cfg.LockTimeout)
	assert.Nil(t, cfg.Accounts)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoad_Accounts(t *testing.T) {
	t.Setenv("EODLEDGER_DATA_DIR", t.TempDir())
	t.Setenv("EODLEDGER_ACCOUNTS", "U100, U200 ,,U300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"U100", "U200", "U300"}, cfg.Accounts)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("EODLEDGER_DATA_DIR", t.TempDir())
	t.Setenv("EODLEDGER_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Port: 8011, Location: time.UTC, LockTimeout: time.Minute}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"missing location", func(c *Config) { c.Location = nil }, true},
		{"zero lock timeout", func(c *Config) { c.LockTimeout = 0 }, true},
		{"archive without credentials", func(c *Config) { c.Archive.Bucket = "extracts" }, true},
		{"archive with credentials", func(c *Config) {
			c.Archive = ArchiveConfig{Bucket: "extracts", AccessKey: "k", SecretKey: "s"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
