package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

func init() {
	rootCmd.AddCommand(narrateCmd)

	narrateCmd.Flags().String("key", "", "diary record key (required)")
	narrateCmd.Flags().String("region", "", "region id (defaults to the diary's region)")
	narrateCmd.Flags().String("bucket", "", "bucket the diary lives in (must match the configured bucket)")
	_ = narrateCmd.MarkFlagRequired("key")
}

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Generate a narrative for a stored diary record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		regionID, _ := cmd.Flags().GetString("region")
		bucket, _ := cmd.Flags().GetString("bucket")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if a.narrative == nil {
			return errors.New("text generation is disabled; set ANTHROPIC_API_KEY")
		}

		res, err := a.narrative.Run(cmd.Context(), domain.NarrativeRequestMessage{
			RegionID: regionID,
			Bucket:   bucket,
			Key:      key,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
