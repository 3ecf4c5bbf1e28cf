package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/imagery"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/verify"
	"github.com/bkd-mataram/padscan/pkg/anthropic"
)

var (
	verifyYearStart int
	verifyYearEnd   int
)

// chipPairSource fetches before/after chips from the imagery backend. Parking
// detections only get a single current chip.
type chipPairSource struct {
	client    *imagery.Client
	yearStart int
	yearEnd   int
}

func (c chipPairSource) Chips(ctx context.Context, d detect.Detection) ([]byte, []byte, error) {
	m := d.Meta()
	if _, isParking := d.(*detect.Parking); isParking {
		chip, err := c.client.Chip(ctx, m.Lat, m.Lon, c.yearEnd)
		return chip, nil, err
	}

	before, err := c.client.Chip(ctx, m.Lat, m.Lon, c.yearStart)
	if err != nil {
		return nil, nil, err
	}
	after, err := c.client.Chip(ctx, m.Lat, m.Lon, c.yearEnd)
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

var verifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Verify a run's detections against their image chips with the vision model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic key not configured (set PADSCAN_ANTHROPIC_KEY)")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		detections, err := env.store.ListDetections(ctx, run.ID)
		if err != nil {
			return err
		}
		if len(detections) == 0 {
			return eris.Errorf("run %s has no detections", run.ID)
		}

		v := verify.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		chips := chipPairSource{client: classifier(), yearStart: verifyYearStart, yearEnd: verifyYearEnd}

		done, err := v.VerifyAll(ctx, detections, chips)
		if err != nil {
			return err
		}

		set := detect.NewSet(detections)
		summary := revenue.Aggregate(set, nil)
		if err := env.store.SaveDetections(ctx, run.ID, set); err != nil {
			return err
		}
		if err := env.store.CompleteRun(ctx, run.ID, run.Source, &summary); err != nil {
			return err
		}

		verified := revenue.AggregateVerified(set, nil)
		fmt.Printf("Verified %d of %d detections.\n", done, len(detections))
		fmt.Printf("Confirmed estimate: %s (%d detections)\n",
			revenue.FormatIDR(verified.TotalAnnualIDR), verified.Count)
		return nil
	},
}

func init() {
	verifyCmd.Flags().IntVar(&verifyYearStart, "year", 2023, "before-chip year")
	verifyCmd.Flags().IntVar(&verifyYearEnd, "year-end", 2024, "after-chip year")
	rootCmd.AddCommand(verifyCmd)
}
