package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/loader"
	"github.com/1F47E/geo-region-index/pkg/models"
	"github.com/1F47E/geo-region-index/pkg/postgis"
	"github.com/1F47E/geo-region-index/pkg/region"
)

var (
	compileOut      string
	compilePostgres bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Load the data directory and write a snapshot",
	Long: `Parses and validates the boundary data once and writes it as a snapshot
that serve, reverse and bench can load with --snapshot, skipping the parse.
With --postgres the regions are also written to the configured PostGIS
database (data.postgres), replacing its contents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := cfg.Data.FinestLevel()
		if err != nil {
			return err
		}

		start := time.Now()
		h, err := loader.Load(cmd.Context(), cfg.Data.Path, level, loader.WithLogger(zap.L()))
		if err != nil {
			return err
		}
		if err := region.SaveSnapshot(compileOut, h); err != nil {
			return eris.Wrap(err, "compile")
		}
		if compilePostgres {
			if err := publish(cmd.Context(), h); err != nil {
				return err
			}
		}

		counts := h.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d regions (%d provinces, %d cities, %d districts) to %s in %v\n",
			h.Len(), counts[models.Province], counts[models.City], counts[models.District], compileOut, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "regions.gob", "snapshot file to write")
	compileCmd.Flags().BoolVar(&compilePostgres, "postgres", false, "also write the regions to the data.postgres database")
	rootCmd.AddCommand(compileCmd)
}

func publish(ctx context.Context, h *region.Hierarchy) error {
	if cfg.Data.Postgres == "" {
		return eris.New("compile: --postgres needs data.postgres to be set")
	}
	store, err := postgis.Open(ctx, cfg.Data.Postgres, zap.L())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	return store.Save(ctx, h)
}
