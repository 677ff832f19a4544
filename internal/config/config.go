// Package config provides configuration loading for recalld.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// Config is the full recalld configuration tree.
type Config struct {
	Log    LogConfig    `koanf:"log"`
	Store  StoreConfig  `koanf:"store"`
	Vector VectorConfig `koanf:"vector"`
	Engine EngineConfig `koanf:"engine"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig selects and locates the backing graph store.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `koanf:"driver"`

	// Path is the SQLite database file. Ignored by the memory driver.
	Path string `koanf:"path"`
}

// VectorConfig controls the optional embedded vector index.
type VectorConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

// EngineConfig carries the engine tunables.
type EngineConfig struct {
	HalfLife          time.Duration            `koanf:"half_life"`
	DedupCacheEntries int64                    `koanf:"dedup_cache_entries"`
	AutoRelate        *memory.AutoRelateConfig `koanf:"auto_relate"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "memory" {
		return fmt.Errorf("store driver must be 'sqlite' or 'memory', got %q", c.Store.Driver)
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("store path is required for the sqlite driver")
	}
	if c.Vector.Enabled && c.Vector.Collection == "" {
		return fmt.Errorf("vector collection name is required when the vector index is enabled")
	}
	if c.Engine.HalfLife < 0 {
		return fmt.Errorf("engine half_life must be >= 0, got %s", c.Engine.HalfLife)
	}
	return nil
}
