package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reverseLat  float64
	reverseLng  float64
	reverseJSON bool
)

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Resolve a single coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		info, err := e.Resolve(reverseLat, reverseLng)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reverseJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		if info.Empty() {
			fmt.Fprintf(out, "No region contains (%.6f, %.6f)\n", reverseLat, reverseLng)
			return nil
		}
		fmt.Fprintf(out, "%s\n", info.FormatAddress())
		for _, r := range info.Regions {
			fmt.Fprintf(out, "  %-8s %-8s %s\n", r.Level, r.Code, r.Name)
		}
		for _, w := range info.Warnings {
			fmt.Fprintf(out, "  warning: %s ambiguous between %v, chose %s\n", w.Level, w.Candidates, w.Chosen)
		}
		return nil
	},
}

func init() {
	reverseCmd.Flags().Float64Var(&reverseLat, "lat", 0, "latitude")
	reverseCmd.Flags().Float64Var(&reverseLng, "lng", 0, "longitude")
	reverseCmd.Flags().BoolVar(&reverseJSON, "json", false, "print the result as JSON")
	_ = reverseCmd.MarkFlagRequired("lat")
	_ = reverseCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(reverseCmd)
}
