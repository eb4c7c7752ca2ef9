package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1F47E/geo-region-index/pkg/models"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the data and print what was loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		s := e.Stats()

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}
		fmt.Fprintf(out, "Finest level: %s\n", s.Finest)
		fmt.Fprintf(out, "Index: %s (%d indexes)\n", s.IndexKind, s.Indexes)
		for _, level := range models.Levels {
			if level > s.Finest {
				break
			}
			fmt.Fprintf(out, "  %-8s %d\n", level, s.Regions[level])
		}
		fmt.Fprintf(out, "Load time: %v\n", s.LoadDuration)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the stats as JSON")
	rootCmd.AddCommand(statsCmd)
}
