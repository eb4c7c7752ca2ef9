package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/config"
	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/postgis"
	"github.com/1F47E/geo-region-index/pkg/region"
)

var cfg *config.Config

var (
	dataPath     string
	dataLevel    string
	snapshotFile string
	indexKind    string
)

var rootCmd = &cobra.Command{
	Use:   "revgeo",
	Short: "Reverse geocoding over administrative boundaries",
	Long: `Resolves a coordinate to the province, city and district that contain it,
using boundary polygons loaded from disk and a per-level spatial index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlags(cmd, c)
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "boundary data directory (default from config)")
	rootCmd.PersistentFlags().StringVarP(&dataLevel, "level", "l", "", "finest level: province, city or district (default from config)")
	rootCmd.PersistentFlags().StringVarP(&snapshotFile, "snapshot", "s", "", "load a compiled snapshot instead of the data directory")
	rootCmd.PersistentFlags().StringVar(&indexKind, "index", "", "spatial index: grid or rtree (default from config)")
}

// applyFlags lets explicit command line flags win over file and env config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		c.Data.Path = dataPath
	}
	if flags.Changed("level") {
		c.Data.Level = dataLevel
	}
	if flags.Changed("snapshot") {
		c.Data.Snapshot = snapshotFile
	}
	if flags.Changed("index") {
		c.Index.Kind = indexKind
	}
}

// loadEngine builds an engine from the first configured source: snapshot,
// then PostGIS, then the data directory.
func loadEngine(ctx context.Context, opts ...engine.Option) (*engine.Engine, error) {
	kind, err := index.ParseKind(cfg.Index.Kind)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Data.FinestLevel()
	if err != nil {
		return nil, err
	}
	opts = append([]engine.Option{engine.WithLogger(zap.L()), engine.WithIndexKind(kind)}, opts...)

	if cfg.Data.Snapshot != "" {
		start := time.Now()
		h, err := region.LoadSnapshot(cfg.Data.Snapshot)
		if err != nil {
			return nil, err
		}
		zap.L().Info("snapshot loaded",
			zap.String("file", cfg.Data.Snapshot),
			zap.Int("regions", h.Len()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return engine.FromHierarchy(h, append(opts, engine.WithMaxLevel(level))...)
	}

	if cfg.Data.Postgres != "" {
		store, err := postgis.Open(ctx, cfg.Data.Postgres, zap.L())
		if err != nil {
			return nil, err
		}
		defer store.Close()
		h, err := store.Load(ctx, level)
		if err != nil {
			return nil, err
		}
		return engine.FromHierarchy(h, append(opts, engine.WithMaxLevel(level))...)
	}
	return engine.New(ctx, cfg.Data.Path, level, opts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
