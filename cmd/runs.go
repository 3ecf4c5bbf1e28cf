package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/export"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/store"
)

var (
	runsCategory string
	runsDistrict string
	runsLimit    int
	exportOut    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.store.ListRuns(cmd.Context(), store.RunFilter{
			Category: revenue.Category(runsCategory),
			District: runsDistrict,
			Limit:    runsLimit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			line := fmt.Sprintf("%s  %-11s %-12s %-8s %s",
				r.ID, r.Category, r.District, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
			if r.Summary != nil {
				line += fmt.Sprintf("  %d det, %s", r.Summary.Count, revenue.FormatIDR(r.Summary.TotalAnnualIDR))
				if r.Summary.Synthetic {
					line += " [demo]"
				}
			}
			fmt.Println(line)
		}
		return nil
	},
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run:      %s\n", run.ID)
		fmt.Printf("Category: %s\n", run.Category)
		fmt.Printf("District: %s\n", run.District)
		fmt.Printf("Status:   %s\n", run.Status)
		if run.Error != "" {
			fmt.Printf("Error:    %s\n", run.Error)
		}
		if run.Summary != nil {
			fmt.Printf("Source:   %s\n", run.Source)
			fmt.Printf("Count:    %d\n", run.Summary.Count)
			fmt.Printf("Area:     %.1f m2\n", run.Summary.TotalAreaM2)
			fmt.Printf("Estimate: %s\n", revenue.FormatIDR(run.Summary.TotalAnnualIDR))
			if run.Summary.Synthetic {
				fmt.Println("\nNOTE: includes simulated data (demo mode).")
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's detections to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		detections, err := env.store.ListDetections(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(detections) == 0 {
			return eris.Errorf("run %s has no detections", args[0])
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close()

		if err := export.WriteDetections(f, detect.NewSet(detections)); err != nil {
			return err
		}
		fmt.Printf("Workbook written: %s (%d detections)\n", exportOut, len(detections))
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsCategory, "category", "", "filter by category (parking, pbb, land_change)")
	runsCmd.Flags().StringVar(&runsDistrict, "district", "", "filter by district")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.AddCommand(showRunCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "padscan-export.xlsx", "output workbook path")

	rootCmd.AddCommand(runsCmd, exportCmd)
}
