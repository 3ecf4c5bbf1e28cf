package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/export"
	"github.com/bkd-mataram/padscan/internal/geo"
	"github.com/bkd-mataram/padscan/internal/streets"
)

var (
	streetsDistrict string
	streetsOut      string
)

var streetsCmd = &cobra.Command{
	Use:   "streets",
	Short: "Build the street-to-SLS reference table for a district",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		district, ok := geo.DistrictByName(streetsDistrict)
		if !ok {
			return eris.Errorf("unknown district %q (expected one of %v)", streetsDistrict, geo.DistrictNames())
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ix, err := env.boundaries()
		if err != nil {
			return err
		}

		// The bbox comes from the district's own units; the attribution
		// below still runs against the whole city so border streets
		// resolve to their true side.
		units := ix.Units(geo.Selection{District: district.NMKec})
		if len(units) == 0 {
			return eris.Errorf("district %s has no boundary units loaded", district.NMKec)
		}
		merged := geo.MergeGeometries(units)
		minX, minY, maxX, maxY := geo.BoundsOf(merged)

		ways, err := streetsClient().NamedWays(ctx, streets.BBox{
			MinLat: minY, MinLon: minX, MaxLat: maxY, MaxLon: maxX,
		})
		if err != nil {
			return err
		}

		dissolved := streets.Dissolve(ways, cfg.Overpass.UnnamedFallback)
		zap.L().Info("streets fetched",
			zap.Int("ways", len(ways)),
			zap.Int("streets", len(dissolved)))

		mapper := streets.NewMapper(cfg.Coverage.LingkunganPct, cfg.Coverage.RTPct)
		rows := mapper.Map(dissolved, ix.Units(geo.Selection{}))

		if streetsOut != "" {
			f, err := os.Create(streetsOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", streetsOut)
			}
			defer f.Close()
			if err := export.WriteStreets(f, rows); err != nil {
				return err
			}
			fmt.Printf("Street table written: %s (%d streets)\n", streetsOut, len(rows))
			return nil
		}

		for _, r := range rows {
			fmt.Printf("%-40s %-20s %-25s %s\n", r.Name, r.Kelurahan, r.Lingkungan, r.Coverage)
		}
		return nil
	},
}

func init() {
	streetsCmd.Flags().StringVar(&streetsDistrict, "district", "", "district (kecamatan)")
	streetsCmd.Flags().StringVar(&streetsOut, "out", "", "write the table to an XLSX workbook")
	streetsCmd.MarkFlagRequired("district") //nolint:errcheck
	rootCmd.AddCommand(streetsCmd)
}
