// Package main implements the recalld CLI for operating the associative
// memory engine against a local SQLite store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/config"
	"github.com/fyrsmithlabs/recalld/internal/engine"
	"github.com/fyrsmithlabs/recalld/internal/graph"
	"github.com/fyrsmithlabs/recalld/internal/logging"
	"github.com/fyrsmithlabs/recalld/internal/vectorindex"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recalld",
	Short: "Associative agent-memory engine",
	Long: `recalld stores distilled lessons, links them to the situations they
resolved, and re-ranks them from observed usefulness.

Memories are deduplicated by content hash, related by tag overlap, and
scored per agent with a Beta-Bernoulli posterior that decays over time.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/recalld/config.yaml)")
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(edgesCmd)
	rootCmd.AddCommand(relateCmd)
}

// runtimeEnv bundles everything a command needs.
type runtimeEnv struct {
	cfg    *config.Config
	log    *zap.Logger
	store  graph.Store
	engine *engine.Service
}

func (r *runtimeEnv) close() {
	r.engine.Close()
	if err := r.store.Close(); err != nil {
		r.log.Warn("closing store", zap.Error(err))
	}
	_ = r.log.Sync()
}

// setup wires config, logging, store, optional vector index, and the engine.
func setup() (*runtimeEnv, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var store graph.Store
	switch cfg.Store.Driver {
	case "memory":
		store = graph.NewMemStore()
	default:
		if err := config.EnsureConfigDir(); err != nil {
			return nil, err
		}
		store, err = graph.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	}

	opts := []engine.Option{engine.WithLogger(log)}
	if cfg.Vector.Enabled {
		idx, err := vectorindex.New(vectorindex.Options{
			Path:       cfg.Vector.Path,
			Collection: cfg.Vector.Collection,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		opts = append(opts, engine.WithVectorIndex(idx))
	}

	svc, err := engine.New(store, engine.Config{
		HalfLife:          cfg.Engine.HalfLife,
		AutoRelate:        cfg.Engine.AutoRelate,
		DedupCacheEntries: cfg.Engine.DedupCacheEntries,
	}, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtimeEnv{cfg: cfg, log: log, store: store, engine: svc}, nil
}
