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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	cfg, err := LoadWithFile(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.False(t, cfg.Vector.Enabled)
	assert.Equal(t, "memories", cfg.Vector.Collection)
	assert.Equal(t, 30*24*time.Hour, cfg.Engine.HalfLife)
	assert.Equal(t, int64(16384), cfg.Engine.DedupCacheEntries)
}

func TestLoadWithFile_YAML(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
store:
  driver: memory
engine:
  half_life: 168h
  auto_relate:
    min_shared_tags: 3
`)
	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 168*time.Hour, cfg.Engine.HalfLife)
	require.NotNil(t, cfg.Engine.AutoRelate)
	require.NotNil(t, cfg.Engine.AutoRelate.MinSharedTags)
	assert.Equal(t, 3, *cfg.Engine.AutoRelate.MinSharedTags)
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	t.Setenv("RECALLD_LOG_LEVEL", "warn")
	t.Setenv("RECALLD_STORE_DRIVER", "memory")

	cfg, err := LoadWithFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }, true},
		{"vector without collection", func(c *Config) { c.Vector.Enabled = true; c.Vector.Collection = "" }, true},
		{"negative half life", func(c *Config) { c.Engine.HalfLife = -time.Hour }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Log:   LogConfig{Level: "info", Format: "json"},
				Store: StoreConfig{Driver: "sqlite", Path: "/tmp/recalld.db"},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
