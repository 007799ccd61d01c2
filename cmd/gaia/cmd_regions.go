package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/gaia-diary-service/internal/config"
)

func init() {
	rootCmd.AddCommand(regionsCmd)
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regions in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		catalog, err := config.LoadRegions(cfg.RegionsFile, cfg.DefaultRegion)
		if err != nil {
			return fmt.Errorf("load regions: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tLAT\tLON\tDEFAULT")
		for _, r := range catalog.Regions() {
			def := ""
			if r.ID == catalog.DefaultID() {
				def = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\n", r.ID, r.Name, r.Category, r.Lat, r.Lon, def)
		}
		return w.Flush()
	},
}
