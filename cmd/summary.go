package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/store"
)

var summaryDistrict string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Compare the latest estimate per revenue stream against its target",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		streams := []struct {
			category revenue.Category
			target   float64
		}{
			{revenue.CategoryParking, cfg.Targets.Parking},
			{revenue.CategoryPBB, cfg.Targets.PBB},
			{revenue.CategoryLandChange, cfg.Targets.LandChange},
		}

		for _, stream := range streams {
			runs, err := env.store.ListRuns(cmd.Context(), store.RunFilter{
				Category: stream.category,
				District: summaryDistrict,
				Limit:    20,
			})
			if err != nil {
				return err
			}

			var latest *store.Run
			for i := range runs {
				if runs[i].Status == store.RunStatusComplete && runs[i].Summary != nil {
					latest = &runs[i]
					break
				}
			}
			if latest == nil {
				fmt.Printf("%-12s no completed runs\n", stream.category)
				continue
			}

			r := revenue.AgainstTarget(stream.category, int64(stream.target), *latest.Summary)
			note := ""
			if latest.Summary.Synthetic {
				note = " [demo]"
			}
			fmt.Printf("%-12s %s of %s (%.1f%%)  %s, %d detections%s\n",
				stream.category,
				revenue.FormatIDR(r.EstimatedIDR), revenue.FormatIDR(r.TargetIDR), r.PctOfTarget,
				latest.District, latest.Summary.Count, note)
		}
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryDistrict, "district", "", "restrict to one district")
	rootCmd.AddCommand(summaryCmd)
}
