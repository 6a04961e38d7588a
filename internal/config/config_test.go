package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farmsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nstore: slot\nslot: spring\nspeed: 5\n"), 0o644))

	t.Setenv("FARMSIM_SPEED", "20")
	t.Setenv("FARMSIM_ADMIN_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, StoreSlot, cfg.Store)
	assert.Equal(t, "spring", cfg.Slot)
	assert.Equal(t, 20, cfg.Speed, "env wins over the file")
	assert.Equal(t, "secret", cfg.AdminKey)
	assert.Equal(t, "data/homestead.db", cfg.DBPath, "unset keys keep defaults")
}

func TestSecretsIgnoredInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farmsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin_key: leaked\nAdminKey: leaked\n"), 0o644))
	t.Setenv("FARMSIM_ADMIN_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AdminKey)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FARMSIM_PORT":      "7000",
		"FARMSIM_DB":        "/tmp/x.db",
		"FARMSIM_CONTENT":   "content.yaml",
		"FARMSIM_SEED":      "-3",
		"FARMSIM_RELAY_KEY": "relay",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "content.yaml", cfg.ContentPath)
	assert.Equal(t, int64(-3), cfg.Seed)
	assert.Equal(t, "relay", cfg.RelayKey)

	bad := Default()
	assert.Error(t, bad.applyEnv(func(k string) string {
		if k == "FARMSIM_PORT" {
			return "eighty"
		}
		return ""
	}))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"store", func(c *Config) { c.Store = "s3" }},
		{"db path", func(c *Config) { c.DBPath = "" }},
		{"slot", func(c *Config) { c.Store = StoreSlot; c.Slot = "" }},
		{"speed", func(c *Config) { c.Speed = 5000 }},
		{"rate", func(c *Config) { c.RateLimit = 0 }},
		{"conns", func(c *Config) { c.MaxStreamConns = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
