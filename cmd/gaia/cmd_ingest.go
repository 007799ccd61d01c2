package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/gaia-diary-service/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("region", "", "region id (defaults to the catalog default)")
	ingestCmd.Flags().Bool("all", false, "ingest every region in the catalog")
	ingestCmd.MarkFlagsMutuallyExclusive("region", "all")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch signals for a region and write a diary record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		regionID, _ := cmd.Flags().GetString("region")
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if !all {
			res, err := a.diary.Run(cmd.Context(), regionID)
			if err != nil {
				return err
			}
			return enc.Encode(res)
		}

		outcomes := pipeline.IngestAll(cmd.Context(), a.diary, a.catalog.IDs(), a.cfg.IngestConcurrency)
		var failed int
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", o.RegionID, o.Err)
				continue
			}
			if err := enc.Encode(o.Result); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d regions failed", failed, len(outcomes))
		}
		return nil
	},
}
